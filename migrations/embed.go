// Package migrations embeds the SQLite schema into the binary.
package migrations

import (
	"embed"

	"github.com/nerrad567/gray-logic-displays/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

// Source returns the embedded migrations.
func Source() database.Migrations {
	return database.Migrations{FS: migrationsFS, Dir: "."}
}
