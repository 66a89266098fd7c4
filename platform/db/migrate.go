package db

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

//go:embed migrations
var migrations embed.FS

// RunMigrations applies all pending embedded migrations for the DB's dialect.
func RunMigrations(ctx context.Context, d *DB) error {
	var (
		dir     string
		dialect goose.Dialect
	)
	switch d.Dialect {
	case DialectSQLite:
		dir, dialect = "migrations/sqlite", goose.DialectSQLite3
	case DialectPostgres:
		dir, dialect = "migrations/postgres", goose.DialectPostgres
	default:
		return fmt.Errorf("no migrations for dialect %q", d.Dialect)
	}

	fsys, err := fs.Sub(migrations, dir)
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(dialect, d.DB, fsys)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
