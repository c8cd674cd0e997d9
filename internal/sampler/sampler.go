// Package sampler draws the per-cell sample from the source table.
//
// Rows are kept by hashing (rowid, seed, fraction threshold) into a
// million buckets, so a given fraction and seed select the same rows
// whatever thread count the engine runs with. Different fractions are
// independent draws, not nested subsets.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/basekick-labs/scalebench/internal/database"
	"github.com/rs/zerolog"
)

// SampleTable holds the current cell's sample. The next cell replaces it.
const SampleTable = "sample_cell"

const buckets = 1_000_000

// ErrInvalidFraction is returned for fractions outside (0, 1]
var ErrInvalidFraction = errors.New("invalid sample fraction")

// ValidateFraction checks 0 < f <= 1
func ValidateFraction(f float64) error {
	if math.IsNaN(f) || f <= 0 || f > 1 {
		return fmt.Errorf("%w: %v (must be in (0, 1])", ErrInvalidFraction, f)
	}
	return nil
}

// Sample is a materialized subset of the source table
type Sample struct {
	Table    string
	Source   string
	Fraction float64
	Seed     int64

	q      database.Querier
	logger zerolog.Logger
}

// Sampler creates samples on an engine session
type Sampler struct {
	seed   int64
	logger zerolog.Logger
}

// New creates a sampler using seed for every draw
func New(seed int64, logger zerolog.Logger) *Sampler {
	return &Sampler{
		seed:   seed,
		logger: logger.With().Str("component", "sampler").Logger(),
	}
}

// Seed returns the sampling seed
func (s *Sampler) Seed() int64 {
	return s.seed
}

// Sample materializes the rows of source selected for fraction into
// SampleTable. A fraction that selects nothing yields an empty table.
func (s *Sampler) Sample(ctx context.Context, q database.Querier, source string, fraction float64) (*Sample, error) {
	if err := ValidateFraction(fraction); err != nil {
		return nil, err
	}

	start := time.Now()
	if _, err := q.Exec(ctx, selectSQL(source, fraction, s.seed)); err != nil {
		return nil, fmt.Errorf("failed to sample %s at fraction %v: %w", source, fraction, err)
	}

	s.logger.Debug().
		Float64("fraction", fraction).
		Int64("seed", s.seed).
		Dur("elapsed", time.Since(start)).
		Msg("Sample materialized")

	return &Sample{
		Table:    SampleTable,
		Source:   source,
		Fraction: fraction,
		Seed:     s.seed,
		q:        q,
		logger:   s.logger,
	}, nil
}

// The threshold salts the hash, so each fraction is its own draw rather
// than a prefix of a larger one.
func selectSQL(source string, fraction float64, seed int64) string {
	t := threshold(fraction)
	return fmt.Sprintf(
		"CREATE OR REPLACE TABLE %s AS SELECT * FROM %s WHERE hash(rowid, %d, %d) %% %d < %d",
		database.QuoteIdent(SampleTable), database.QuoteIdent(source), seed, t, buckets, t)
}

// threshold is the number of hash buckets kept for fraction
func threshold(fraction float64) int64 {
	return int64(math.Round(fraction * buckets))
}

// Warm forces a full pass over the sample so later timed queries are not
// charged for first touch. The count is discarded.
func (s *Sample) Warm(ctx context.Context) error {
	start := time.Now()
	if _, err := s.count(ctx); err != nil {
		return fmt.Errorf("failed to warm sample: %w", err)
	}
	s.logger.Debug().Dur("elapsed", time.Since(start)).Msg("Sample warmed")
	return nil
}

// Measure counts the sample rows again; this is the reported n_rows
func (s *Sample) Measure(ctx context.Context) (int64, error) {
	n, err := s.count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to measure sample: %w", err)
	}
	return n, nil
}

func (s *Sample) count(ctx context.Context) (int64, error) {
	return database.Count(ctx, s.q, "SELECT count(*) FROM "+database.QuoteIdent(s.Table))
}
