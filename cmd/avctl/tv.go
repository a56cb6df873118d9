package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/sportsbar-av/internal/audit"
	"github.com/nerrad567/sportsbar-av/internal/control"
	"github.com/nerrad567/sportsbar-av/internal/device"
	"github.com/nerrad567/sportsbar-av/internal/infrastructure/database"
)

// recordTimeout bounds the control_log write after each result.
const recordTimeout = 2 * time.Second

func newTVCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tv",
		Short: "Control TVs through the orchestrator",
	}
	cmd.AddCommand(newTVListCommand(ctx))
	cmd.AddCommand(newTVControlCommand(ctx))
	cmd.AddCommand(newTVBatchCommand(ctx))
	cmd.AddCommand(newTVHistoryCommand(ctx))
	cmd.AddCommand(newTVCommandsCommand(ctx))
	return cmd
}

// tvSession holds what a tv subcommand needs. close releases the database.
type tvSession struct {
	db       *database.DB
	registry *device.Registry
	log      audit.Repository
}

// openTVSession opens the database, seeds TVs from the devices file the
// same way the daemon does, and loads the registry.
func (c *commandContext) openTVSession(ctx context.Context) (*tvSession, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	db, err := c.openDB(ctx)
	if err != nil {
		return nil, err
	}
	repo := device.NewSQLiteRepository(db.DB)

	if cfg.DevicesFile != "" {
		tvs, err := device.LoadSeedFile(cfg.DevicesFile)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			db.Close() //nolint:errcheck // error path
			return nil, err
		default:
			if _, err := device.Seed(ctx, repo, tvs, c.logger()); err != nil {
				db.Close() //nolint:errcheck // error path
				return nil, fmt.Errorf("seeding devices: %w", err)
			}
		}
	}

	registry := device.NewRegistry(repo)
	registry.SetLogger(c.logger())
	if err := registry.RefreshCache(ctx); err != nil {
		db.Close() //nolint:errcheck // error path
		return nil, fmt.Errorf("loading device registry: %w", err)
	}
	return &tvSession{
		db:       db,
		registry: registry,
		log:      audit.NewSQLiteRepository(db.DB),
	}, nil
}

func (s *tvSession) close() {
	s.db.Close() //nolint:errcheck // best effort on exit
}

// orchestrator returns an orchestrator that records every result in the
// control log, the same as the daemon does.
func (s *tvSession) orchestrator(c *commandContext) (*control.Orchestrator, error) {
	o, err := c.orchestrator()
	if err != nil {
		return nil, err
	}
	o.SetOnResult(func(res control.Result) {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := s.log.Record(ctx, audit.FromResult(res)); err != nil {
			c.logger().Warn("failed to record control result", "id", res.ID, "error", err)
		}
	})
	return o, nil
}

func newTVListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured TVs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := ctx.openTVSession(cmd.Context())
			if err != nil {
				return err
			}
			defer sess.close()

			tvs, err := sess.registry.ListTVs(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(tvs))
			for _, tv := range tvs {
				rows = append(rows, []string{
					tv.ID,
					tv.Name,
					tv.Brand,
					strconv.Itoa(tv.Output),
					paths(tv),
					string(tv.PreferredMethod),
				})
			}
			return ctx.emit(tvs,
				[]string{"ID", "Name", "Brand", "Output", "Paths", "Preferred"},
				rows, []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight})
		},
	}
}

func paths(tv device.TV) string {
	switch {
	case tv.SupportsCEC && tv.SupportsIR:
		return "CEC+IR"
	case tv.SupportsCEC:
		return "CEC"
	case tv.SupportsIR:
		return "IR"
	default:
		return "none"
	}
}

func newTVControlCommand(ctx *commandContext) *cobra.Command {
	var method string
	var noFallback bool
	cmd := &cobra.Command{
		Use:   "control ID COMMAND",
		Short: "Send one command to one TV",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := control.ParseMethod(method)
			if err != nil {
				return err
			}

			sess, err := ctx.openTVSession(cmd.Context())
			if err != nil {
				return err
			}
			defer sess.close()

			tv, err := sess.registry.GetTV(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			orch, err := sess.orchestrator(ctx)
			if err != nil {
				return err
			}

			res := orch.Control(cmd.Context(), *tv, args[1], control.Options{Method: m, NoFallback: noFallback})
			if err := ctx.emit(res, resultHeaders(), resultRows([]control.Result{res}), resultAligns()); err != nil {
				return err
			}
			if !res.Success {
				return fmt.Errorf("%s on %s failed: %s", res.Command, res.DeviceID, res.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&method, "method", "", "Force CEC or IR")
	cmd.Flags().BoolVar(&noFallback, "no-fallback", false, "Do not retry on the other path")
	return cmd
}

func newTVBatchCommand(ctx *commandContext) *cobra.Command {
	var method string
	var parallel bool
	var delay time.Duration
	var parallelism int
	cmd := &cobra.Command{
		Use:   "batch COMMAND ID...",
		Short: "Send one command to several TVs",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := control.ParseMethod(method)
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			sess, err := ctx.openTVSession(cmd.Context())
			if err != nil {
				return err
			}
			defer sess.close()

			tvs, err := sess.registry.GetTVs(cmd.Context(), args[1:])
			if err != nil {
				return err
			}
			orch, err := sess.orchestrator(ctx)
			if err != nil {
				return err
			}

			opts := control.BatchOptions{
				Sequential:   !parallel,
				DelayBetween: cfg.Control.DelayBetween,
				Parallelism:  cfg.Control.Parallelism,
				Method:       m,
			}
			if cmd.Flags().Changed("delay") {
				opts.DelayBetween = delay
			}
			if parallelism > 0 {
				opts.Parallelism = parallelism
			}

			results := orch.ControlMultiple(cmd.Context(), tvs, args[0], opts)
			summary := control.Summarize(results)
			if ctx.wantJSON() {
				if err := writeJSON(ctx.out, map[string]any{"results": results, "summary": summary}); err != nil {
					return err
				}
			} else {
				fmt.Fprintln(ctx.out, renderTable(resultHeaders(), resultRows(results), resultAligns()))
				fmt.Fprintf(ctx.out, "%d succeeded, %d failed, %d via fallback\n",
					summary.Succeeded, summary.Failed, summary.Fallbacks)
			}
			if summary.Failed > 0 {
				return fmt.Errorf("%d of %d TVs failed", summary.Failed, summary.Total)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&method, "method", "", "Force CEC or IR")
	cmd.Flags().BoolVar(&parallel, "parallel", false, "Control TVs concurrently instead of one at a time")
	cmd.Flags().DurationVar(&delay, "delay", 0, "Gap between TVs in sequential mode (default from config)")
	cmd.Flags().IntVar(&parallelism, "parallelism", 0, "Concurrent TVs in parallel mode (default from config)")
	return cmd
}

func newTVHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var failed bool
	var command string
	var since time.Duration
	cmd := &cobra.Command{
		Use:   "history [ID]",
		Short: "Show recent control attempts",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := ctx.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // best effort on exit

			filter := audit.Filter{Command: command, Limit: limit}
			if len(args) == 1 {
				filter.DeviceID = args[0]
			}
			if failed {
				f := false
				filter.Success = &f
			}
			if since > 0 {
				filter.Since = time.Now().Add(-since)
			}

			page, err := audit.NewSQLiteRepository(db.DB).List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if ctx.wantJSON() {
				return writeJSON(ctx.out, page)
			}
			fmt.Fprintln(ctx.out, renderTable(historyHeaders(), historyRows(page.Entries), historyAligns()))
			fmt.Fprintf(ctx.out, "Showing %d of %d\n", len(page.Entries), page.Total)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum entries to show")
	cmd.Flags().BoolVar(&failed, "failed", false, "Only show failures")
	cmd.Flags().StringVar(&command, "command", "", "Only show this command")
	cmd.Flags().DurationVar(&since, "since", 0, "Only show entries newer than this, e.g. 2h")
	return cmd
}

func newTVCommandsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "commands",
		Short: "List command names TVs accept",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names := control.Commands()
			rows := make([][]string, 0, len(names))
			for _, n := range names {
				rows = append(rows, []string{n})
			}
			return ctx.emit(names, []string{"Command"}, rows, nil)
		},
	}
}

func resultHeaders() []string {
	return []string{"TV", "Command", "Result", "Method", "Duration", "Message"}
}

func resultAligns() []columnAlignment {
	return []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight}
}

func resultRows(results []control.Result) [][]string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		msg := r.Message
		if r.Error != "" {
			msg = r.Message + ": " + r.Error
		}
		rows = append(rows, []string{
			r.DeviceID,
			r.Command,
			outcome(r.Success),
			string(r.Method),
			formatMillis(r.DurationMS),
			msg,
		})
	}
	return rows
}

func historyHeaders() []string {
	return []string{"Time", "TV", "Command", "Result", "Method", "Duration", "Error"}
}

func historyAligns() []columnAlignment {
	return []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight}
}

func historyRows(entries []audit.Entry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.CreatedAt.Local().Format(time.DateTime),
			e.DeviceID,
			e.Command,
			outcome(e.Success),
			e.Method,
			formatMillis(e.DurationMS),
			e.Error,
		})
	}
	return rows
}

func outcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "FAILED"
}

func formatMillis(ms int64) string {
	return strconv.FormatInt(ms, 10) + "ms"
}
