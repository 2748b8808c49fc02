// Package migrations embeds the SQLite schema for the sqlite store backend.
package migrations

import "embed"

// FS holds the migration files at its root. Pass it to
// database.DB.Migrate.
//
//go:embed *.sql
var FS embed.FS
