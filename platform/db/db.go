// Package db provides database connection infrastructure.
// This is part of the platform layer and contains no business logic.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect identifies the SQL flavour behind a DB.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// DB is a database/sql handle that knows its dialect.
type DB struct {
	*sql.DB
	Dialect Dialect
}

// Open connects to the database named by url. "sqlite:<path>" (or ":memory:")
// opens an embedded SQLite file, postgres:// and postgresql:// URLs use pgx.
func Open(ctx context.Context, url string) (*DB, error) {
	url = strings.TrimSpace(url)
	var (
		conn    *sql.DB
		dialect Dialect
		err     error
	)
	switch {
	case strings.HasPrefix(url, "sqlite:"):
		dialect = DialectSQLite
		path := strings.TrimPrefix(url, "sqlite:")
		dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
		conn, err = sql.Open("sqlite", dsn)
		if err == nil {
			// A single writer avoids SQLITE_BUSY under concurrent appends.
			conn.SetMaxOpenConns(1)
		}
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		dialect = DialectPostgres
		conn, err = sql.Open("pgx", url)
		if err == nil {
			conn.SetMaxOpenConns(25)
			conn.SetMaxIdleConns(5)
			conn.SetConnMaxLifetime(time.Hour)
			conn.SetConnMaxIdleTime(30 * time.Minute)
		}
	default:
		return nil, fmt.Errorf("unsupported database url %q", url)
	}
	if err != nil {
		return nil, err
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	return &DB{DB: conn, Dialect: dialect}, nil
}

// Rebind rewrites "?" placeholders into the dialect's form.
func (d *DB) Rebind(query string) string {
	if d.Dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// HealthAdapter exposes a DB as a readiness probe.
type HealthAdapter struct {
	db *DB
}

func NewHealthAdapter(d *DB) *HealthAdapter {
	return &HealthAdapter{db: d}
}

func (a *HealthAdapter) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}
