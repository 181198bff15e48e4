// Package db opens the in-memory DuckDB database behind the plan journal.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/marcboeker/go-duckdb"
)

// Config holds database configuration.
type Config struct {
	// DSN is passed to the driver. Empty is a private in-memory database.
	DSN string
	// Extensions are installed and loaded after opening. A failure is
	// logged and the database stays usable.
	Extensions []string
	Logger     *slog.Logger
}

// Open opens and pings a DuckDB database.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := sql.Open("duckdb", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("db: open: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("db: ping: %w", err)
	}

	for _, ext := range cfg.Extensions {
		if _, err := conn.ExecContext(ctx, fmt.Sprintf("INSTALL %s; LOAD %s;", ext, ext)); err != nil {
			logger.Warn("duckdb extension unavailable", "extension", ext, "error", err)
		}
	}
	return conn, nil
}

// Exec runs each statement in order, stopping at the first failure.
func Exec(ctx context.Context, conn *sql.DB, stmts ...string) error {
	for _, stmt := range stmts {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
