// Package migrations embeds the bridge's SQL schema files into the binary.
package migrations

import (
	"embed"

	"github.com/nerrad567/gray-logic-appliance-bridge/internal/infrastructure/database"
)

//go:embed *.sql
var files embed.FS

// All returns the embedded migrations in version order.
func All() ([]database.Migration, error) {
	return database.LoadMigrations(files, ".")
}
