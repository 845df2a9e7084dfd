// Package migrations embeds the SQL schema migrations into the binary.
//
// Files follow the YYYYMMDD_HHMMSS_description.{up,down}.sql convention read
// by database.LoadMigrations.
package migrations

import "embed"

// FS holds every migration file at its root.
//
//go:embed *.sql
var FS embed.FS
