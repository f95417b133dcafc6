// Package migrations embeds the journal's SQL migration files into the
// binary, so hostbridge runs the schema without SQL files on disk.
package migrations

import (
	"embed"

	"github.com/hostbridge/hostbridge-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "." // files sit at the root of the embedded FS
}
