package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/basekick-labs/scalebench/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	records := []models.MetricsRecord{
		{Fraction: 0.5, Threads: 2, Total: 4.0, MovingAvg7d: 1.0},
		{Fraction: 0.5, Threads: 4, Total: 2.0, MovingAvg7d: 0.5},
		{Fraction: 0.5, Threads: 8, Total: 3.0, MovingAvg7d: 0.6},
		{Fraction: 0.01, Threads: 2, Total: 0.2, MovingAvg7d: 0.1},
	}

	got := Summarize(records)
	require.Len(t, got, 2)

	half := got[0]
	assert.Equal(t, 0.5, half.Fraction)
	assert.Equal(t, 3, half.Cells)
	assert.InDelta(t, 3.0, half.MeanTotal, 1e-12)
	assert.InDelta(t, 1.0, half.StdDevTotal, 1e-12)
	assert.InDelta(t, 0.7, half.MeanMovingAvg, 1e-12)
	assert.Equal(t, 4, half.BestThreads)
	assert.Equal(t, 2.0, half.BestTotal)
	assert.Equal(t, 2, half.WorstThreads)
	assert.Equal(t, 2, half.BaselineThreads)
	assert.InDelta(t, 2.0, half.Speedup, 1e-12)

	single := got[1]
	assert.Equal(t, 0.01, single.Fraction)
	assert.Equal(t, 1, single.Cells)
	assert.Zero(t, single.StdDevTotal)
	assert.InDelta(t, 1.0, single.Speedup, 1e-12)
}

func TestSummarizeEmpty(t *testing.T) {
	assert.Empty(t, Summarize(nil))
}

func TestSummarizeZeroTotals(t *testing.T) {
	got := Summarize([]models.MetricsRecord{{Fraction: 1, Threads: 2}, {Fraction: 1, Threads: 4}})
	require.Len(t, got, 1)
	assert.Zero(t, got[0].Speedup)
}

func TestPrint(t *testing.T) {
	var buf bytes.Buffer
	err := Print(&buf, Summarize([]models.MetricsRecord{
		{Fraction: 0.25, Threads: 2, Total: 1.0},
		{Fraction: 0.25, Threads: 16, Total: 0.5},
	}))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "fraction"))
	assert.Contains(t, lines[1], "0.25")
	assert.Contains(t, lines[1], "16 (0.500s)")
	assert.Contains(t, lines[1], "2.00x vs 2")
}
