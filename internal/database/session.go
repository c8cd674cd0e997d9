package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ErrInvalidResources is returned when a resource request cannot be applied
var ErrInvalidResources = errors.New("invalid resources")

// Querier is the statement surface shared by the engine and a leased session
type Querier interface {
	Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Resources is the per-cell allocation requested from the engine.
// DuckDB runs shuffles (hash aggregates, window partitions, sorts) on
// its own thread pool, so both knobs collapse onto the threads setting.
type Resources struct {
	ShufflePartitions  int
	DefaultParallelism int
}

// Parallelism returns a request with both knobs set to n
func Parallelism(n int) Resources {
	return Resources{ShufflePartitions: n, DefaultParallelism: n}
}

// Threads returns the engine thread count that satisfies the request
func (r Resources) Threads() int {
	if r.ShufflePartitions > r.DefaultParallelism {
		return r.ShufflePartitions
	}
	return r.DefaultParallelism
}

// Validate checks that both knobs are positive
func (r Resources) Validate() error {
	if r.ShufflePartitions < 1 || r.DefaultParallelism < 1 {
		return fmt.Errorf("%w: shuffle_partitions=%d default_parallelism=%d",
			ErrInvalidResources, r.ShufflePartitions, r.DefaultParallelism)
	}
	return nil
}

// Session is a single engine connection leased with a fixed resource allocation
type Session struct {
	conn   *sql.Conn
	logger zerolog.Logger
	res    Resources
}

func (s *Session) apply(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, fmt.Sprintf("SET threads=%d", s.res.Threads())); err != nil {
		return fmt.Errorf("failed to set threads=%d: %w", s.res.Threads(), err)
	}
	s.logger.Debug().
		Int("shuffle_partitions", s.res.ShufflePartitions).
		Int("default_parallelism", s.res.DefaultParallelism).
		Int("threads", s.res.Threads()).
		Msg("Resources applied")
	return nil
}

// Resources returns the allocation this session was leased with
func (s *Session) Resources() Resources {
	return s.res
}

// Threads reads the thread count the engine is currently running with
func (s *Session) Threads(ctx context.Context) (int, error) {
	var threads int64
	if err := s.conn.QueryRowContext(ctx, "SELECT current_setting('threads')::BIGINT").Scan(&threads); err != nil {
		return 0, fmt.Errorf("failed to read threads: %w", err)
	}
	return int(threads), nil
}

// Query executes a query on the leased connection
func (s *Session) Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	start := time.Now()
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.Error().Err(err).Str("query", query).Dur("elapsed", time.Since(start)).Msg("Query failed")
		return nil, fmt.Errorf("query failed: %w", err)
	}
	s.logger.Debug().Str("query", query).Dur("elapsed", time.Since(start)).Msg("Query executed")
	return rows, nil
}

// Exec executes a statement on the leased connection
func (s *Session) Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	start := time.Now()
	result, err := s.conn.ExecContext(ctx, query, args...)
	if err != nil {
		s.logger.Error().Err(err).Str("query", query).Dur("elapsed", time.Since(start)).Msg("Exec failed")
		return nil, fmt.Errorf("exec failed: %w", err)
	}
	s.logger.Debug().Str("query", query).Dur("elapsed", time.Since(start)).Msg("Exec completed")
	return result, nil
}

// Count runs query and scans its single integer result. Used to force
// materialization of a lazily defined result: the engine has to produce
// every row of the subquery to count it.
func Count(ctx context.Context, q Querier, query string, args ...interface{}) (int64, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, fmt.Errorf("failed to scan count: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to read count: %w", err)
	}
	return n, nil
}

// Drain reads every row of query to the client and returns how many there were
func Drain(ctx context.Context, q Querier, query string, args ...interface{}) (int64, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return 0, fmt.Errorf("failed to read columns: %w", err)
	}
	dest := make([]interface{}, len(cols))
	for i := range dest {
		dest[i] = new(interface{})
	}

	var n int64
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return n, fmt.Errorf("failed to scan row: %w", err)
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return n, fmt.Errorf("failed to read rows: %w", err)
	}
	return n, nil
}
