// Package migrations embeds the frame archive schema into the binary.
package migrations

import "embed"

// FS holds the SQL migration files, at its root.
//
//go:embed *.sql
var FS embed.FS
