// Package migrations embeds the goose SQL migrations for the optional
// match-history database (grounded on the teacher's
// internal/db/migrations package, referenced from internal/db/migrate.go
// but reauthored here for the match_history schema).
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
