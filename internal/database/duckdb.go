package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/rs/zerolog"
)

// DuckDB manages the embedded engine every experiment cell runs on.
// The pool shares one in-memory database, so tables created on any
// connection are visible to all of them.
type DuckDB struct {
	db     *sql.DB
	logger zerolog.Logger
	config *Config

	// lease serializes WithResources callers; threads is a database-wide setting
	lease sync.Mutex
}

// Config holds DuckDB configuration
type Config struct {
	MaxConnections int
	MemoryLimit    string
	TempDirectory  string
	ThreadCount    int // Threads used outside of a resource lease (loading, staging)
}

// New creates a new DuckDB instance
func New(cfg *Config, logger zerolog.Logger) (*DuckDB, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}

	maxConns := cfg.MaxConnections
	if maxConns < 1 {
		maxConns = 1
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	// Idle connections are never recycled: closing the last one would drop the in-memory database
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping duckdb: %w", err)
	}

	if err := configureDatabase(db, cfg); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure duckdb: %w", err)
	}

	logger.Info().
		Int("max_connections", maxConns).
		Str("memory_limit", cfg.MemoryLimit).
		Str("temp_directory", cfg.TempDirectory).
		Int("thread_count", cfg.ThreadCount).
		Msg("DuckDB initialized")

	return &DuckDB{
		db:     db,
		logger: logger,
		config: cfg,
	}, nil
}

// configureDatabase sets DuckDB configuration after connection
func configureDatabase(db *sql.DB, cfg *Config) error {
	if cfg.MemoryLimit != "" {
		if _, err := db.Exec(fmt.Sprintf("SET memory_limit='%s'", EscapeSQLString(cfg.MemoryLimit))); err != nil {
			return fmt.Errorf("failed to set memory_limit: %w", err)
		}
	}
	if cfg.TempDirectory != "" {
		if _, err := db.Exec(fmt.Sprintf("SET temp_directory='%s'", EscapeSQLString(cfg.TempDirectory))); err != nil {
			return fmt.Errorf("failed to set temp_directory: %w", err)
		}
	}
	if cfg.ThreadCount > 0 {
		if _, err := db.Exec(fmt.Sprintf("SET threads=%d", cfg.ThreadCount)); err != nil {
			return fmt.Errorf("failed to set threads: %w", err)
		}
	}
	return nil
}

// WithResources runs fn on a dedicated connection after applying res to the
// engine. Callers are serialized for the whole of fn, so the parallelism a
// cell observes is exactly the one it asked for, even if several drivers
// share this instance.
func (d *DuckDB) WithResources(ctx context.Context, res Resources, fn func(s *Session) error) error {
	if err := res.Validate(); err != nil {
		return err
	}

	d.lease.Lock()
	defer d.lease.Unlock()

	conn, err := d.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	s := &Session{conn: conn, logger: d.logger, res: res}
	if err := s.apply(ctx); err != nil {
		return err
	}

	return fn(s)
}

// Query executes a query outside of any resource lease
func (d *DuckDB) Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	start := time.Now()
	rows, err := d.db.QueryContext(ctx, query, args...)
	elapsed := time.Since(start)

	if err != nil {
		d.logger.Error().
			Err(err).
			Str("query", query).
			Dur("elapsed", elapsed).
			Msg("Query failed")
		return nil, fmt.Errorf("query failed: %w", err)
	}

	d.logger.Debug().
		Str("query", query).
		Dur("elapsed", elapsed).
		Msg("Query executed")

	return rows, nil
}

// Exec executes a statement without returning rows
func (d *DuckDB) Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	start := time.Now()
	result, err := d.db.ExecContext(ctx, query, args...)
	elapsed := time.Since(start)

	if err != nil {
		d.logger.Error().
			Err(err).
			Str("query", query).
			Dur("elapsed", elapsed).
			Msg("Exec failed")
		return nil, fmt.Errorf("exec failed: %w", err)
	}

	d.logger.Debug().
		Str("query", query).
		Dur("elapsed", elapsed).
		Msg("Exec completed")

	return result, nil
}

// Close closes the database connection
func (d *DuckDB) Close() error {
	if err := d.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	d.logger.Info().Msg("DuckDB closed")
	return nil
}

// Stats returns database statistics
func (d *DuckDB) Stats() sql.DBStats {
	return d.db.Stats()
}

// EscapeSQLString escapes single quotes for safe use in DuckDB SQL strings
func EscapeSQLString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// QuoteIdent quotes an identifier for DuckDB
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
