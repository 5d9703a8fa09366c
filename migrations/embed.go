// Package migrations embeds the warehouse DDL applied by `unicorn-etl migrate`.
package migrations

import "embed"

// Dir is the goose directory inside FS.
const Dir = "unicorn"

//go:embed unicorn/*.sql
var FS embed.FS
