// Package database provides the bridge's SQLite store.
//
// The bridge persists only raw register snapshots: semantic state is always
// re-derived from them. The package handles:
//   - Opening the database with WAL mode and a busy timeout
//   - Versioned up/down migrations loaded from any fs.FS
//   - Transaction helpers
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	ms, err := migrations.All()
//	if err != nil {
//	    return err
//	}
//	if _, err := db.Migrate(ctx, ms); err != nil {
//	    return err
//	}
package database
