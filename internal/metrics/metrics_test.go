package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/basekick-labs/scalebench/pkg/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullCell(c *Collector, threads int, fraction float64) *Cell {
	cell := c.StartCell(threads, fraction, 46)
	cell.ObserveQuery("moving_avg_7d", models.FieldMovingAvg7d, 30*time.Millisecond)
	cell.ObserveQuery("acidentes_estado", models.FieldAcidentesEstado, 10*time.Millisecond)
	cell.ObserveQuery("clima_grave", models.FieldClimaGrave, 20*time.Millisecond)
	cell.ObserveQuery("severidade_hora", models.FieldSeveridadeHora, 30*time.Millisecond)
	cell.ObserveQuery("condicoes_via", models.FieldCondicoesVia, 40*time.Millisecond)
	cell.ObserveQuery("tipo_acidente", models.FieldTipoAcidente, 50*time.Millisecond)
	cell.SetTotal(150 * time.Millisecond)
	cell.SetRows(1234)
	return cell
}

func TestCommitBuildsRecord(t *testing.T) {
	c := NewCollector("run-1", zerolog.Nop())

	rec, err := c.Commit(fullCell(c, 8, 0.25))
	require.NoError(t, err)

	assert.Equal(t, 8, rec.Threads)
	assert.Equal(t, 0.25, rec.Fraction)
	assert.Equal(t, int64(1234), rec.NRows)
	assert.Equal(t, 46, rec.NCols)
	assert.InDelta(t, 0.03, rec.MovingAvg7d, 1e-12)
	assert.InDelta(t, 0.05, rec.TipoAcidente, 1e-12)
	assert.InDelta(t, 0.15, rec.Total, 1e-12)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.cellsTotal))
}

func TestCommitRejectsPartialCell(t *testing.T) {
	c := NewCollector("run-1", zerolog.Nop())

	cell := c.StartCell(2, 0.01, 46)
	cell.ObserveQuery("moving_avg_7d", models.FieldMovingAvg7d, time.Millisecond)

	_, err := c.Commit(cell)
	require.Error(t, err)
	assert.Contains(t, err.Error(), models.FieldAcidentesEstado)
	assert.Zero(t, testutil.ToFloat64(c.cellsTotal))
	assert.Zero(t, testutil.CollectAndCount(c.totalDuration))
}

func TestObserveQueryRejectsUnknownField(t *testing.T) {
	c := NewCollector("run-1", zerolog.Nop())
	cell := c.StartCell(2, 0.01, 46)

	assert.Error(t, cell.ObserveQuery("x", "t_unknown", time.Millisecond))
	assert.Error(t, cell.ObserveQuery("x", models.FieldTotal, time.Millisecond))
	assert.Error(t, cell.ObserveQuery("x", models.FieldNRows, time.Millisecond))
}

func TestCommitReturnsIndependentRecords(t *testing.T) {
	c := NewCollector("run-1", zerolog.Nop())

	a, err := c.Commit(fullCell(c, 2, 0.01))
	require.NoError(t, err)
	b, err := c.Commit(fullCell(c, 16, 1.0))
	require.NoError(t, err)

	assert.Equal(t, 2, a.Threads)
	assert.Equal(t, 16, b.Threads)
	assert.Equal(t, 1.0, b.Fraction)
	assert.Equal(t, 2.0, testutil.ToFloat64(c.cellsTotal))
}

func TestPrometheusMirrors(t *testing.T) {
	c := NewCollector("run-1", zerolog.Nop())
	_, err := c.Commit(fullCell(c, 2, 0.01))
	require.NoError(t, err)
	_, err = c.Commit(fullCell(c, 4, 0.01))
	require.NoError(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.cellsTotal))
	assert.Equal(t, 1234.0, testutil.ToFloat64(c.sampleRows.WithLabelValues("0.01")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.runInfo.WithLabelValues("run-1")))
	// six queries per cell, one series per (query, threads)
	assert.Equal(t, 12, testutil.CollectAndCount(c.queryDuration))
}

func TestWriteTextfile(t *testing.T) {
	c := NewCollector("run-42", zerolog.Nop())
	_, err := c.Commit(fullCell(c, 2, 0.5))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "scalebench.prom")
	require.NoError(t, c.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "scalebench_cells_total 1")
	assert.Contains(t, text, `scalebench_run_info{run_id="run-42"} 1`)
	assert.Contains(t, text, `scalebench_query_duration_seconds_count{fraction="0.5",query="clima_grave",threads="2"} 1`)
}
