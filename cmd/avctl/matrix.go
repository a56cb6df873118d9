package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nerrad567/sportsbar-av/internal/bridges/matrix"
)

func newMatrixCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "matrix",
		Short: "Drive the HDMI matrix directly",
	}
	cmd.AddCommand(newMatrixRouteCommand(ctx))
	return cmd
}

func newMatrixRouteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "route INPUT OUTPUT",
		Short: "Connect a matrix input to an output",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := parsePort("input", args[0])
			if err != nil {
				return err
			}
			output, err := parsePort("output", args[1])
			if err != nil {
				return err
			}

			router, err := ctx.router()
			if err != nil {
				return err
			}
			if err := router.Route(cmd.Context(), input, output); err != nil {
				return err
			}

			if ctx.wantJSON() {
				return writeJSON(ctx.out, map[string]any{
					"input":      input,
					"output":     output,
					"crosspoint": matrix.Crosspoint(input, output),
				})
			}
			fmt.Fprintf(ctx.out, "Routed input %d to output %d\n", input, output)
			return nil
		},
	}
}

// parsePort parses a 1-based matrix port number.
func parsePort(name, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", name, s)
	}
	return n, nil
}
