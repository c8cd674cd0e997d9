// Package metrics collects per-cell measurements into MetricsRecords and
// mirrors them into a private Prometheus registry.
package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/basekick-labs/scalebench/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const namespace = "scalebench"

// Query durations range from milliseconds on tiny samples to minutes on
// the full dataset at low parallelism.
var durationBuckets = prometheus.ExponentialBuckets(0.005, 2.5, 12)

// Collector validates per-cell measurements into MetricsRecords and
// mirrors them into Prometheus. The records belong to the caller.
type Collector struct {
	registry      *prometheus.Registry
	queryDuration *prometheus.HistogramVec
	totalDuration *prometheus.HistogramVec
	sampleRows    *prometheus.GaugeVec
	cellsTotal    prometheus.Counter
	runInfo       *prometheus.GaugeVec

	logger zerolog.Logger
}

// NewCollector creates a collector for one run
func NewCollector(runID string, logger zerolog.Logger) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Elapsed time of one battery query, from construction to materialization",
			Buckets:   durationBuckets,
		}, []string{"query", "fraction", "threads"}),
		totalDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cell_total_seconds",
			Help:      "t_total of one grid cell",
			Buckets:   durationBuckets,
		}, []string{"fraction", "threads"}),
		sampleRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sample_rows",
			Help:      "Rows in the materialized sample",
		}, []string{"fraction"}),
		cellsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cells_total",
			Help:      "Grid cells completed",
		}),
		runInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_info",
			Help:      "Run identifier, always 1",
		}, []string{"run_id"}),
		logger: logger.With().Str("component", "metrics").Logger(),
	}

	c.registry.MustRegister(c.queryDuration, c.totalDuration, c.sampleRows, c.cellsTotal, c.runInfo)
	c.runInfo.WithLabelValues(runID).Set(1)

	return c
}

// Cell accumulates the measurements of one grid cell
type Cell struct {
	c   *Collector
	rec models.MetricsRecord

	fraction string
	threads  string
	timed    map[string]bool
}

// StartCell begins a record for the (threads, fraction) cell
func (c *Collector) StartCell(threads int, fraction float64, nCols int) *Cell {
	return &Cell{
		c: c,
		rec: models.MetricsRecord{
			Threads:  threads,
			Fraction: fraction,
			NCols:    nCols,
		},
		fraction: strconv.FormatFloat(fraction, 'f', -1, 64),
		threads:  strconv.Itoa(threads),
		timed:    make(map[string]bool),
	}
}

// ObserveQuery stores a query timing under its metric field
func (cell *Cell) ObserveQuery(query, metric string, elapsed time.Duration) error {
	if metric == models.FieldTotal || !cell.rec.SetTiming(metric, elapsed.Seconds()) {
		return fmt.Errorf("unknown timing field %q for query %s", metric, query)
	}
	cell.timed[metric] = true
	cell.c.queryDuration.WithLabelValues(query, cell.fraction, cell.threads).Observe(elapsed.Seconds())
	return nil
}

// SetTotal stores t_total
func (cell *Cell) SetTotal(elapsed time.Duration) {
	cell.rec.Total = elapsed.Seconds()
	cell.timed[models.FieldTotal] = true
}

// SetRows stores n_rows
func (cell *Cell) SetRows(n int64) {
	cell.rec.NRows = n
}

var timingFields = []string{
	models.FieldMovingAvg7d, models.FieldAcidentesEstado, models.FieldClimaGrave,
	models.FieldSeveridadeHora, models.FieldCondicoesVia, models.FieldTipoAcidente,
	models.FieldTotal,
}

// Commit finishes the cell's record. A cell missing any timing is
// rejected so no partial record is ever produced.
func (c *Collector) Commit(cell *Cell) (models.MetricsRecord, error) {
	for _, f := range timingFields {
		if !cell.timed[f] {
			return models.MetricsRecord{}, fmt.Errorf("cell threads=%d fraction=%v: missing %s",
				cell.rec.Threads, cell.rec.Fraction, f)
		}
	}

	c.sampleRows.WithLabelValues(cell.fraction).Set(float64(cell.rec.NRows))
	c.totalDuration.WithLabelValues(cell.fraction, cell.threads).Observe(cell.rec.Total)
	c.cellsTotal.Inc()

	return cell.rec, nil
}

// WriteTextfile exports the registry in the node_exporter textfile format
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	c.logger.Info().Str("path", path).Msg("Metrics textfile written")
	return nil
}
