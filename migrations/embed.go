// Package migrations embeds the SQL schema migrations applied by pkg/database.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
