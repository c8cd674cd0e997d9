// Package battery runs the fixed, ordered set of aggregation queries timed
// in every grid cell.
package battery

import (
	"context"
	"fmt"
	"time"

	"github.com/basekick-labs/scalebench/internal/database"
	"github.com/basekick-labs/scalebench/internal/sampler"
	"github.com/basekick-labs/scalebench/pkg/models"
	"github.com/rs/zerolog"
)

// QueryTiming is the measurement of one battery query
type QueryTiming struct {
	Name    string
	Metric  string
	Elapsed time.Duration
	// Rows is the count (Count) or number of rows read back (Collect)
	Rows int64
}

// Timings is the result of one battery run
type Timings struct {
	Queries []QueryTiming
	// Total is an independent stopwatch over the InTotal queries
	Total time.Duration
}

// Get returns the timing recorded under a metric name
func (t *Timings) Get(metric string) (QueryTiming, bool) {
	for _, q := range t.Queries {
		if q.Metric == metric {
			return q, true
		}
	}
	return QueryTiming{}, false
}

// Apply copies every timing into rec, in seconds
func (t *Timings) Apply(rec *models.MetricsRecord) {
	for _, q := range t.Queries {
		rec.SetTiming(q.Metric, q.Elapsed.Seconds())
	}
	rec.Total = t.Total.Seconds()
}

// Battery runs a list of queries against a sample
type Battery struct {
	queries []Query
	logger  zerolog.Logger
}

// New creates a battery over queries, or the default list if none are given
func New(logger zerolog.Logger, queries ...Query) *Battery {
	if len(queries) == 0 {
		queries = Default()
	}
	return &Battery{
		queries: queries,
		logger:  logger.With().Str("component", "battery").Logger(),
	}
}

// Queries returns the battery in execution order
func (b *Battery) Queries() []Query {
	out := make([]Query, len(b.queries))
	copy(out, b.queries)
	return out
}

// Run executes every query in order on q. Each timing spans query
// construction to the end of materialization. The first failure aborts
// the run.
func (b *Battery) Run(ctx context.Context, q database.Querier, sample *sampler.Sample) (*Timings, error) {
	timings := &Timings{Queries: make([]QueryTiming, 0, len(b.queries))}

	var totalStart time.Time
	for _, query := range b.queries {
		if query.InTotal && totalStart.IsZero() {
			totalStart = time.Now()
		}

		start := time.Now()
		stmt := query.Statement(sample.Table)

		var rows int64
		var err error
		switch query.Materialize {
		case Collect:
			rows, err = database.Drain(ctx, q, stmt)
		default:
			rows, err = database.Count(ctx, q, stmt)
		}
		elapsed := time.Since(start)

		if query.InTotal {
			timings.Total = time.Since(totalStart)
		}

		if err != nil {
			b.logger.Error().
				Err(err).
				Str("query", query.Name).
				Float64("fraction", sample.Fraction).
				Msg("Battery query failed")
			return nil, fmt.Errorf("query %s: %w", query.Name, err)
		}

		timings.Queries = append(timings.Queries, QueryTiming{
			Name:    query.Name,
			Metric:  query.Metric,
			Elapsed: elapsed,
			Rows:    rows,
		})

		b.logger.Debug().
			Str("query", query.Name).
			Str("materialize", query.Materialize.String()).
			Int64("rows", rows).
			Dur("elapsed", elapsed).
			Msg("Battery query completed")
	}

	return timings, nil
}
