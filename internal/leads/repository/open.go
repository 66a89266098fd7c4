package repository

import (
	"context"
	"fmt"

	"smartsales_backend/platform/config"
	"smartsales_backend/platform/db"
)

// OpenHistory returns the history log selected by configuration: in memory
// when no database URL is set, otherwise SQL with migrations applied. The
// returned *db.DB is nil for the in-memory log; the caller closes it.
func OpenHistory(ctx context.Context, cfg config.HistoryConfig) (HistoryLog, *db.DB, error) {
	url := cfg.GetHistoryDatabaseURL()
	if url == "" {
		return NewMemoryHistory(), nil, nil
	}

	conn, err := db.Open(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("open history database: %w", err)
	}
	if err := db.RunMigrations(ctx, conn); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("migrate history database: %w", err)
	}
	return NewSQLHistory(conn), conn, nil
}
