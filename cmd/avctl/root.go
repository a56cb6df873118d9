package main

import (
	"io"

	"github.com/spf13/cobra"
)

func newRootCommand(out io.Writer) *cobra.Command {
	var configFlag string
	var jsonFlag bool

	ctx := newCommandContext(&configFlag, &jsonFlag, out)

	rootCmd := &cobra.Command{
		Use:           "avctl",
		Short:         "Sports-bar AV control CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.SetOut(out)

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path (default $SPORTSBAR_CONFIG or configs/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Print JSON instead of tables")

	rootCmd.AddCommand(newMatrixCommand(ctx))
	rootCmd.AddCommand(newCECCommand(ctx))
	rootCmd.AddCommand(newAudioCommand(ctx))
	rootCmd.AddCommand(newTVCommand(ctx))
	rootCmd.AddCommand(newDBCommand(ctx))

	return rootCmd
}
