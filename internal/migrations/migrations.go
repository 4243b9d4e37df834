package migrations

import "embed"

// Files contains the schema migrations embedded into the binary. They use a
// flat numeric naming convention (001_init.sql, 002_....sql) and are applied
// in lexical order by store.ApplyMigrations.
//
//go:embed *.sql
var Files embed.FS
