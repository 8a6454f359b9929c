package migrations

import "embed"

// FS contains embedded SQLite migrations for bridge storage.
//
//go:embed *.sql
var FS embed.FS
