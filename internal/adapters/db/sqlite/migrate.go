package sqlite

import (
	"context"
	"embed"
	"io/fs"

	"github.com/pressly/goose/v3"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// RunMigrations applies pending migrations and returns the versions it applied.
func RunMigrations(ctx context.Context, db *gorm.DB) ([]int64, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	migrations, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return nil, err
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, sqlDB, migrations)
	if err != nil {
		return nil, err
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return nil, err
	}

	applied := make([]int64, 0, len(results))
	for _, res := range results {
		applied = append(applied, res.Source.Version)
	}
	return applied, nil
}
