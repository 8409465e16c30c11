// Package migrations embeds the storefront's PostgreSQL schema migrations.
package migrations

import "embed"

// FS holds the *.sql migration files, applied by database.RunMigrations.
//
//go:embed *.sql
var FS embed.FS
