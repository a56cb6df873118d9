// Package database opens the SQLite store used for the TV catalogue and
// the control log, and applies embedded schema migrations.
//
// The store runs in WAL mode with a busy timeout and a single pooled
// connection. Files are created with 0600 permissions.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql, and are registered by importing the
// top-level migrations package for its side effect.
package database
