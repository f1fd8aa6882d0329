package repository

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"

	"entgo.io/ent/dialect"
	"github.com/pressly/goose/v3"

	"github.com/joseph-ayodele/jobcopilot/db/migrations"
)

// Migrate applies the embedded migrations for the connection's dialect.
func Migrate(ctx context.Context, db *DB, logger *slog.Logger) error {
	var (
		gd  goose.Dialect
		dir string
	)
	switch db.Dialect() {
	case dialect.Postgres:
		gd, dir = goose.DialectPostgres, "postgres"
	case dialect.SQLite:
		gd, dir = goose.DialectSQLite3, "sqlite"
	default:
		return fmt.Errorf("no migrations for dialect %q", db.Dialect())
	}
	fsys, err := fs.Sub(migrations.FS, dir)
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(gd, db.Driver.DB(), fsys)
	if err != nil {
		return fmt.Errorf("migration provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		logger.Error("migrations failed", "dialect", dir, "error", err)
		return fmt.Errorf("apply migrations: %w", err)
	}
	for _, r := range results {
		logger.Info("migration applied", "version", r.Source.Version, "duration", r.Duration)
	}
	logger.Info("migrations up to date", "dialect", dir, "applied", len(results))
	return nil
}
