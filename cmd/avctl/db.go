package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newDBCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(newDBMigrateCommand(ctx))
	cmd.AddCommand(newDBStatusCommand(ctx))
	cmd.AddCommand(newDBRollbackCommand(ctx))
	return cmd
}

func newDBMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := ctx.openRawDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // best effort on exit

			_, pending, err := db.MigrationStatus(cmd.Context())
			if err != nil {
				return err
			}
			if err := db.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(ctx.out, "Applied %d migration(s) to %s\n", len(pending), db.Path())
			return nil
		},
	}
}

func newDBStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := ctx.openRawDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // best effort on exit

			applied, pending, err := db.MigrationStatus(cmd.Context())
			if err != nil {
				return err
			}

			type row struct {
				Version   string     `json:"version"`
				Name      string     `json:"name,omitempty"`
				AppliedAt *time.Time `json:"applied_at,omitempty"`
			}
			out := make([]row, 0, len(applied)+len(pending))
			rows := make([][]string, 0, len(applied)+len(pending))
			for _, a := range applied {
				at := a.AppliedAt
				out = append(out, row{Version: a.Version, AppliedAt: &at})
				rows = append(rows, []string{a.Version, "", "applied " + at.Local().Format(time.DateTime)})
			}
			for _, p := range pending {
				out = append(out, row{Version: p.Version, Name: p.Name})
				rows = append(rows, []string{p.Version, p.Name, "pending"})
			}
			return ctx.emit(out, []string{"Version", "Name", "Status"}, rows, nil)
		},
	}
}

func newDBRollbackCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rollback",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := ctx.openRawDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // best effort on exit

			version, err := db.MigrateDown(cmd.Context())
			if err != nil {
				return err
			}
			if version == "" {
				fmt.Fprintln(ctx.out, "Nothing to roll back")
				return nil
			}
			fmt.Fprintf(ctx.out, "Rolled back %s\n", version)
			return nil
		},
	}
}
