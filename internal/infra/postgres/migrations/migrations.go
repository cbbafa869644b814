package migrations

import "github.com/uptrace/bun/migrate"

// Migrations holds the schema history; each dated file registers one step.
var Migrations = migrate.NewMigrations()
