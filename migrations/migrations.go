// Package migrations embeds the SQL schema so binaries carry it with them.
package migrations

import "embed"

const (
	SQLDir   = "sql"
	SeedsDir = "seeds"
)

//go:embed sql/*.sql seeds/*.sql
var FS embed.FS
