package results

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/basekick-labs/scalebench/pkg/models"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords() []models.MetricsRecord {
	return []models.MetricsRecord{
		{Threads: 2, Fraction: 0.01, NRows: 77, NCols: 46, MovingAvg7d: 0.5, AcidentesEstado: 0.1,
			ClimaGrave: 0.2, SeveridadeHora: 0.3, CondicoesVia: 0.4, TipoAcidente: 0.5, Total: 1.5},
		{Threads: 16, Fraction: 1, NRows: 7700, NCols: 46, MovingAvg7d: 0.25, AcidentesEstado: 0.125,
			ClimaGrave: 0.25, SeveridadeHora: 0.375, CondicoesVia: 0.5, TipoAcidente: 0.625, Total: 1.875},
	}
}

func TestTarget(t *testing.T) {
	assert.Equal(t, "s3://bucket/parallel_metrics_actions/part-00000.csv", Target("s3://bucket/parallel_metrics_actions/"))
	assert.Equal(t, "s3://bucket/metrics.csv", Target("s3://bucket/metrics.csv"))
	assert.Equal(t, "/tmp/out/part-00000.csv", Target("/tmp/out/"))
}

func TestEncode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, sampleRecords()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "fraction,n_cols,n_rows,t_acidentes_estado,t_clima_grave,t_condicoes_via,t_moving_avg_7d,t_severidade_hora,t_tipo_acidente,t_total,threads", lines[0])
	assert.Equal(t, "0.01,46,77,0.1,0.2,0.4,0.5,0.3,0.5,1.5,2", lines[1])
	assert.Equal(t, "1,46,7700,0.125,0.25,0.5,0.25,0.375,0.625,1.875,16", lines[2])
}

func TestEncodeEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, nil))
	assert.Equal(t, strings.Join(models.MetricFields(), ",")+"\n", buf.String())
}

func readCSV(t *testing.T, r io.Reader) [][]string {
	t.Helper()
	rows, err := csv.NewReader(r).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteLocal(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(nil, zerolog.Nop())

	target, err := w.Write(context.Background(), dir+"/metrics/", sampleRecords())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "metrics", PartName), target)

	f, err := os.Open(target)
	require.NoError(t, err)
	defer f.Close()

	rows := readCSV(t, f)
	require.Len(t, rows, 3)
	assert.Equal(t, models.MetricFields(), rows[0])
}

func TestWriteOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.csv")
	w := NewWriter(nil, zerolog.Nop())

	_, err := w.Write(context.Background(), path, sampleRecords())
	require.NoError(t, err)
	_, err = w.Write(context.Background(), path, sampleRecords()[:1])
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Len(t, readCSV(t, f), 2)
}

func TestWriteGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.csv.gz")
	_, err := NewWriter(nil, zerolog.Nop()).Write(context.Background(), path, sampleRecords())
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	defer zr.Close()

	rows := readCSV(t, zr)
	require.Len(t, rows, 3)
	assert.Equal(t, "16", rows[2][len(rows[2])-1])
}

func TestWriteZstd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.csv.zst")
	_, err := NewWriter(nil, zerolog.Nop()).Write(context.Background(), path, sampleRecords())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	dec, err := zstd.NewReader(nil)
	require.NoError(t, err)
	defer dec.Close()
	plain, err := dec.DecodeAll(data, nil)
	require.NoError(t, err)

	rows := readCSV(t, bytes.NewReader(plain))
	require.Len(t, rows, 3)
	assert.Equal(t, "0.01", rows[1][0])
}

func TestWriteUnsupportedScheme(t *testing.T) {
	_, err := NewWriter(nil, zerolog.Nop()).Write(context.Background(), "gs://bucket/metrics.csv", sampleRecords())
	assert.Error(t, err)
}

func TestDestinationOpenBeforeWrite(t *testing.T) {
	dir := t.TempDir()
	dest, err := NewWriter(nil, zerolog.Nop()).Open(context.Background(), dir+"/")
	require.NoError(t, err)
	defer dest.Close()

	assert.Equal(t, filepath.Join(dir, PartName), dest.URI())
	_, err = os.Stat(dest.URI())
	assert.True(t, os.IsNotExist(err), "opening must not create the artifact")

	require.NoError(t, dest.Write(context.Background(), sampleRecords()))

	f, err := os.Open(dest.URI())
	require.NoError(t, err)
	defer f.Close()
	assert.Len(t, readCSV(t, f), 3)
}
