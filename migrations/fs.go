// Package migrations embeds the SQL schema migrations for the chat
// history database, consumed by cmd/migrate through an iofs source.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
