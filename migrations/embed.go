// Package migrations embeds the schema migrations for every supported driver.
package migrations

import "embed"

// Postgres holds migrations applied through the pgx driver.
//
//go:embed postgres/*.sql
var Postgres embed.FS

// SQLite holds migrations applied through the modernc sqlite driver.
//
//go:embed sqlite/*.sql
var SQLite embed.FS
