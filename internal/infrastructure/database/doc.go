// Package database provides SQLite connectivity for the frame archive.
//
// This package manages:
//   - Opening the database (file with optional WAL, or ":memory:")
//   - Schema migrations read from an fs.FS (see the migrations package)
//   - Health checks and lifecycle management
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with a
// matching .down.sql, and are applied in version order.
package database
