// Package migrations embeds the Postgres schema of the appointment service.
package migrations

import "embed"

//go:embed *.up.sql
var FS embed.FS
