// Package grid runs the fraction x parallelism sweep.
package grid

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/basekick-labs/scalebench/internal/battery"
	"github.com/basekick-labs/scalebench/internal/database"
	"github.com/basekick-labs/scalebench/internal/dataset"
	"github.com/basekick-labs/scalebench/internal/metrics"
	"github.com/basekick-labs/scalebench/internal/sampler"
	"github.com/basekick-labs/scalebench/pkg/models"
	"github.com/rs/zerolog"
)

// ErrEmptySweep is returned when either sweep list is empty
var ErrEmptySweep = errors.New("empty sweep")

// Config describes one sweep
type Config struct {
	Fractions   []float64
	Parallelism []int
	Seed        int64

	// Progress receives one line per cell; defaults to stdout
	Progress io.Writer
}

// Validate checks the sweep lists before any engine work
func (c *Config) Validate() error {
	if len(c.Fractions) == 0 {
		return fmt.Errorf("%w: no fractions", ErrEmptySweep)
	}
	if len(c.Parallelism) == 0 {
		return fmt.Errorf("%w: no parallelism levels", ErrEmptySweep)
	}
	for _, f := range c.Fractions {
		if err := sampler.ValidateFraction(f); err != nil {
			return err
		}
	}
	for _, p := range c.Parallelism {
		if err := database.Parallelism(p).Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Cells returns the number of grid cells
func (c *Config) Cells() int {
	return len(c.Fractions) * len(c.Parallelism)
}

// Driver runs every cell in order, one at a time
type Driver struct {
	db        *database.DuckDB
	cfg       Config
	sampler   *sampler.Sampler
	battery   *battery.Battery
	collector *metrics.Collector
	runID     string
	logger    zerolog.Logger
}

// New creates a driver. The collector receives every committed record.
func New(db *database.DuckDB, cfg Config, collector *metrics.Collector, runID string, logger zerolog.Logger) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Progress == nil {
		cfg.Progress = os.Stdout
	}

	logger = logger.With().Str("component", "grid").Str("run_id", runID).Logger()

	return &Driver{
		db:        db,
		cfg:       cfg,
		sampler:   sampler.New(cfg.Seed, logger),
		battery:   battery.New(logger),
		collector: collector,
		runID:     runID,
		logger:    logger,
	}, nil
}

// Run sweeps fractions (outer) by parallelism (inner) over table and
// returns the records in sweep order. A failed cell aborts the sweep.
func (d *Driver) Run(ctx context.Context, table *dataset.Table) ([]models.MetricsRecord, error) {
	start := time.Now()

	d.logger.Info().
		Floats64("fractions", d.cfg.Fractions).
		Ints("parallelism", d.cfg.Parallelism).
		Int64("seed", d.sampler.Seed()).
		Int("cells", d.cfg.Cells()).
		Msg("Sweep starting")

	records := make([]models.MetricsRecord, 0, d.cfg.Cells())
	for _, fraction := range d.cfg.Fractions {
		for _, threads := range d.cfg.Parallelism {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("sweep interrupted: %w", err)
			}

			rec, err := d.runCell(ctx, table, fraction, threads)
			if err != nil {
				return nil, fmt.Errorf("cell frac=%v threads=%d: %w", fraction, threads, err)
			}
			records = append(records, rec)

			fmt.Fprintf(d.cfg.Progress, "[frac=%.2f threads=%d] t_total=%.2fs, t_moving_avg_7d=%.2fs\n",
				fraction, threads, rec.Total, rec.MovingAvg7d)
		}
	}

	d.logger.Info().
		Int("cells", len(records)).
		Dur("elapsed", time.Since(start)).
		Msg("Sweep completed")

	return records, nil
}

// runCell is sample -> warm -> battery -> measure under one resource lease
func (d *Driver) runCell(ctx context.Context, table *dataset.Table, fraction float64, threads int) (models.MetricsRecord, error) {
	var rec models.MetricsRecord

	err := d.db.WithResources(ctx, database.Parallelism(threads), func(sess *database.Session) error {
		sample, err := d.sampler.Sample(ctx, sess, table.Name, fraction)
		if err != nil {
			return err
		}
		if err := sample.Warm(ctx); err != nil {
			return err
		}

		timings, err := d.battery.Run(ctx, sess, sample)
		if err != nil {
			return err
		}

		nRows, err := sample.Measure(ctx)
		if err != nil {
			return err
		}

		cell := d.collector.StartCell(threads, fraction, table.NumColumns())
		for _, q := range timings.Queries {
			if err := cell.ObserveQuery(q.Name, q.Metric, q.Elapsed); err != nil {
				return err
			}
		}
		cell.SetTotal(timings.Total)
		cell.SetRows(nRows)

		rec, err = d.collector.Commit(cell)
		return err
	})
	if err != nil {
		return models.MetricsRecord{}, err
	}

	d.logger.Info().
		Float64("fraction", fraction).
		Int("threads", threads).
		Int64("n_rows", rec.NRows).
		Float64("t_total", rec.Total).
		Float64("t_moving_avg_7d", rec.MovingAvg7d).
		Msg("Cell completed")

	return rec, nil
}
