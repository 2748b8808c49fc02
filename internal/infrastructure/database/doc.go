// Package database provides SQLite connectivity for the sqlite store
// backend.
//
// It manages:
//   - The connection, with WAL mode and a busy timeout
//   - Schema migrations loaded from an fs.FS (see the migrations package)
//   - Transaction scoping via InTx
//
// The database file is created with 0600 permissions.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: "data/specstore.db", WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations are additive. Each version ships an .up.sql and, where a
// rollback is possible, a .down.sql.
package database
