package grid_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/basekick-labs/scalebench/internal/database"
	"github.com/basekick-labs/scalebench/internal/dataset/datasettest"
	"github.com/basekick-labs/scalebench/internal/grid"
	"github.com/basekick-labs/scalebench/internal/metrics"
	"github.com/basekick-labs/scalebench/internal/sampler"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSmallGrid(t *testing.T) {
	db := datasettest.NewDB(t)
	table := datasettest.Load(t, db, datasettest.Generate(1000, 42))

	var progress bytes.Buffer
	collector := metrics.NewCollector("test-run", zerolog.Nop())
	driver, err := grid.New(db, grid.Config{
		Fractions:   []float64{0.01, 1.0},
		Parallelism: []int{2, 16},
		Seed:        42,
		Progress:    &progress,
	}, collector, "test-run", zerolog.Nop())
	require.NoError(t, err)

	records, err := driver.Run(context.Background(), table)
	require.NoError(t, err)
	require.Len(t, records, 4)

	type cell struct {
		fraction float64
		threads  int
	}
	want := []cell{{0.01, 2}, {0.01, 16}, {1.0, 2}, {1.0, 16}}
	for i, rec := range records {
		assert.Equal(t, want[i], cell{rec.Fraction, rec.Threads})
		assert.Equal(t, table.NumColumns(), rec.NCols)
		assert.Greater(t, rec.Total, 0.0)
		assert.Greater(t, rec.MovingAvg7d, 0.0)

		sum := rec.AcidentesEstado + rec.ClimaGrave + rec.SeveridadeHora + rec.CondicoesVia + rec.TipoAcidente
		assert.GreaterOrEqual(t, rec.Total, sum)
		assert.InDelta(t, sum, rec.Total, 0.1)
	}

	// Same fraction, different parallelism: same sample
	assert.Equal(t, records[0].NRows, records[1].NRows)
	assert.Equal(t, int64(1000), records[2].NRows)
	assert.Equal(t, int64(1000), records[3].NRows)

	lines := strings.Split(strings.TrimSpace(progress.String()), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "[frac=0.01 threads=2] t_total="), lines[0])
	assert.True(t, strings.HasPrefix(lines[3], "[frac=1.00 threads=16] t_total="), lines[3])
	assert.Contains(t, lines[0], "s, t_moving_avg_7d=")
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     grid.Config
		wantErr error
	}{
		{"no fractions", grid.Config{Parallelism: []int{2}}, grid.ErrEmptySweep},
		{"no parallelism", grid.Config{Fractions: []float64{0.1}}, grid.ErrEmptySweep},
		{"zero fraction", grid.Config{Fractions: []float64{0}, Parallelism: []int{2}}, sampler.ErrInvalidFraction},
		{"fraction above one", grid.Config{Fractions: []float64{1.5}, Parallelism: []int{2}}, sampler.ErrInvalidFraction},
		{"zero threads", grid.Config{Fractions: []float64{0.1}, Parallelism: []int{0}}, database.ErrInvalidResources},
		{"valid", grid.Config{Fractions: []float64{0.1, 1}, Parallelism: []int{1, 4}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	db := datasettest.NewDB(t)
	table := datasettest.Load(t, db, datasettest.Generate(50, 1))

	driver, err := grid.New(db, grid.Config{
		Fractions:   []float64{0.5},
		Parallelism: []int{2},
		Seed:        42,
		Progress:    &bytes.Buffer{},
	}, metrics.NewCollector("r", zerolog.Nop()), "r", zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = driver.Run(ctx, table)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunFailsOnMissingTable(t *testing.T) {
	db := datasettest.NewDB(t)
	table := datasettest.Load(t, db, datasettest.Generate(50, 1))
	table.Name = "no_such_table"

	collector := metrics.NewCollector("r", zerolog.Nop())
	driver, err := grid.New(db, grid.Config{
		Fractions:   []float64{0.5, 1.0},
		Parallelism: []int{2},
		Seed:        42,
		Progress:    &bytes.Buffer{},
	}, collector, "r", zerolog.Nop())
	require.NoError(t, err)

	records, err := driver.Run(context.Background(), table)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frac=0.5 threads=2")
	assert.Nil(t, records)
}
