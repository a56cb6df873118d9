package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/sportsbar-av/internal/bridges/atlas"
)

func newAudioCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audio",
		Short: "Read and write audio processor parameters",
	}
	cmd.AddCommand(newAudioParamsCommand(ctx))
	cmd.AddCommand(newAudioGetCommand(ctx))
	cmd.AddCommand(newAudioSetCommand(ctx))
	cmd.AddCommand(newAudioBumpCommand(ctx))
	cmd.AddCommand(newAudioWatchCommand(ctx))
	return cmd
}

func newAudioParamsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "params",
		Short: "List known parameter families",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			params := atlas.Parameters()
			rows := make([][]string, 0, len(params))
			for _, p := range params {
				rng := ""
				if p.Kind == atlas.KindNumeric {
					rng = fmt.Sprintf("%g..%g", p.Min, p.Max)
				}
				rows = append(rows, []string{p.Prefix, p.Kind.String(), rng, yesNo(p.Indexed), paramAccess(p)})
			}
			return ctx.emit(params,
				[]string{"Parameter", "Kind", "Range", "Indexed", "Access"},
				rows, []columnAlignment{alignLeft, alignLeft, alignRight})
		},
	}
}

func paramAccess(p atlas.ParameterDescriptor) string {
	switch {
	case p.Action:
		return "action"
	case p.ReadOnly:
		return "read"
	default:
		return "read/write"
	}
}

func newAudioGetCommand(ctx *commandContext) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "get PARAM",
		Short: "Read a parameter, e.g. ZoneGain_0",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.audio(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Disconnect() //nolint:errcheck // best effort on exit

			v, err := client.Get(cmd.Context(), args[0], format)
			if err != nil {
				return err
			}
			return ctx.emit(v, []string{"Parameter", "Value"}, [][]string{{v.Param, v.String()}}, nil)
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "Value format: val, pct or str")
	return cmd
}

func newAudioSetCommand(ctx *commandContext) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "set PARAM VALUE",
		Short: "Write a parameter",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := parseAudioValue(args[0], args[1], format)
			if err != nil {
				return err
			}

			client, err := ctx.audio(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Disconnect() //nolint:errcheck // best effort on exit

			if err := client.Set(cmd.Context(), args[0], value, format); err != nil {
				return err
			}
			if ctx.wantJSON() {
				return writeJSON(ctx.out, map[string]any{"param": args[0], "value": value})
			}
			fmt.Fprintf(ctx.out, "%s = %v\n", args[0], value)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "Value format: val, pct or str")
	return cmd
}

func newAudioBumpCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "bump PARAM DELTA",
		Short: "Step a numeric parameter by DELTA",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			delta, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("delta must be a number, got %q", args[1])
			}
			if err := atlas.ValidateBump(args[0], delta); err != nil {
				return err
			}

			client, err := ctx.audio(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Disconnect() //nolint:errcheck // best effort on exit

			if err := client.Bump(cmd.Context(), args[0], delta); err != nil {
				return err
			}
			if ctx.wantJSON() {
				return writeJSON(ctx.out, map[string]any{"param": args[0], "delta": delta})
			}
			fmt.Fprintf(ctx.out, "%s bumped by %g\n", args[0], delta)
			return nil
		},
	}
}

func newAudioWatchCommand(ctx *commandContext) *cobra.Command {
	var interval time.Duration
	var all bool
	cmd := &cobra.Command{
		Use:   "watch PARAM",
		Short: "Poll a parameter until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.audio(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Disconnect() //nolint:errcheck // best effort on exit

			return watchMeter(cmd.Context(), client, args[0], interval, func(u atlas.MeterUpdate) error {
				if !u.Changed && !all {
					return nil
				}
				if ctx.wantJSON() {
					return writeJSON(ctx.out, u)
				}
				fmt.Fprintf(ctx.out, "%s  %s = %s\n", u.At.Format(time.TimeOnly), u.Param, u.Value.String())
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "Polling interval")
	cmd.Flags().BoolVar(&all, "all", false, "Print every reading, not only changes")
	return cmd
}

// meterSource is the part of *atlas.Client that watch needs.
type meterSource interface {
	Subscribe(param string, interval time.Duration, cb func(atlas.MeterUpdate)) (*atlas.MeterSubscription, error)
	SetOnStateChange(fn func(atlas.State))
	WaitConnected(ctx context.Context) error
}

// watchMeter polls param and hands each reading to emit until ctx ends.
// Subscriptions die with their session, so it subscribes again after every
// reconnect, and it fails once the client stops reconnecting.
func watchMeter(ctx context.Context, src meterSource, param string, interval time.Duration, emit func(atlas.MeterUpdate) error) error {
	updates := make(chan atlas.MeterUpdate, 16)
	states := make(chan atlas.State, 16)
	src.SetOnStateChange(func(s atlas.State) {
		select {
		case states <- s:
		default:
		}
	})
	defer src.SetOnStateChange(nil)

	subscribe := func() error {
		_, err := src.Subscribe(param, interval, func(u atlas.MeterUpdate) {
			select {
			case updates <- u:
			default:
			}
		})
		return err
	}
	if err := subscribe(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case u := <-updates:
			if err := emit(u); err != nil {
				return err
			}
		case s := <-states:
			switch s {
			case atlas.StateConnected:
				if err := subscribe(); err != nil {
					return fmt.Errorf("resubscribing %s: %w", param, err)
				}
			case atlas.StateError, atlas.StateDisconnected:
				if err := src.WaitConnected(ctx); err != nil {
					if ctx.Err() != nil {
						return nil
					}
					return fmt.Errorf("watching %s: %w", param, err)
				}
			}
		}
	}
}

// parseAudioValue converts VALUE to the parameter's kind and validates it
// before any connection is opened.
func parseAudioValue(param, s, format string) (any, error) {
	desc, err := atlas.LookupParameter(param)
	if err != nil {
		return nil, err
	}

	var value any = s
	if desc.Kind == atlas.KindNumeric {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("%s expects a number, got %q", param, s)
		}
		value = f
	}

	if format == "" {
		format = atlas.FormatVal
		if desc.Kind == atlas.KindString {
			format = atlas.FormatStr
		}
	}
	return atlas.ValidateSet(param, value, format)
}
