// Package migrations embeds the postgres schema applied at start-up.
package migrations

import "embed"

// FS holds every *.sql file; files are applied in lexical order and must be idempotent.
//
//go:embed *.sql
var FS embed.FS
