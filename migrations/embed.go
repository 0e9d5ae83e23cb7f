package migrations

import "embed"

// FS holds the goose migrations so the cli binary runs without the source tree.
//
//go:embed *.sql
var FS embed.FS
