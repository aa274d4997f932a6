package db

import (
	"embed"
	"io/fs"
	"os"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DevMode makes getMigrationsFS prefer the on-disk migrations directory
// over the embedded copy, so migration edits take effect without a
// rebuild. Set from the -dev flag.
var DevMode = false

// devMigrationsDir is where the migration sources live relative to the
// repository root.
const devMigrationsDir = "internal/db/migrations"

// getMigrationsFS returns the migrations as a filesystem rooted at the
// directory containing the .sql files.
func getMigrationsFS() (fs.FS, error) {
	if DevMode {
		if info, err := os.Stat(devMigrationsDir); err == nil && info.IsDir() {
			return os.DirFS(devMigrationsDir), nil
		}
	}
	return fs.Sub(migrationsFS, "migrations")
}
