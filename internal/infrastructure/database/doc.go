// Package database provides SQLite connectivity for displayd.
//
// The database holds brightness history and nothing else; calibration data
// lives in its own JSON file so it survives a database reset.
//
// Security Considerations:
//   - All queries use parameterised statements
//   - Database file permissions are set to 0600 (owner read/write only)
//
// Usage:
//
//	db, err := database.Open(ctx, database.ConfigFrom(cfg.Database))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if _, err := db.Migrate(ctx, migrations.Source()); err != nil {
//	    log.Fatal(err)
//	}
//
// Migration Strategy:
//
// Migrations are additive-only. Files are named
// YYYYMMDD_HHMMSS_description.up.sql and applied in version order.
package database
