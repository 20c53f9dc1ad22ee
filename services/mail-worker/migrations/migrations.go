// Package migrations embeds the Postgres schema of the mail worker.
package migrations

import "embed"

//go:embed *.up.sql
var FS embed.FS
