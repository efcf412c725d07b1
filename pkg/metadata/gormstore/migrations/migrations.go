// Package migrations embeds the versioned schema of the metadata store.
// The history mirrors the artifact format: the base schema, the hard-link
// counter, then sub-second timestamps and device numbers.
package migrations

import "embed"

// SQLite holds the SQLite migration scripts.
//
//go:embed sqlite/*.sql
var SQLite embed.FS

// Postgres holds the PostgreSQL migration scripts.
//
//go:embed postgres/*.sql
var Postgres embed.FS
