// Package results persists the sweep's MetricsRecords as a single CSV
// artifact.
package results

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/basekick-labs/scalebench/internal/storage"
	"github.com/basekick-labs/scalebench/pkg/models"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"
)

// PartName is appended to destinations that name a directory
const PartName = "part-00000.csv"

// Target returns the object URI written for a destination. A trailing
// slash addresses a directory holding a single part file.
func Target(uri string) string {
	if strings.HasSuffix(uri, "/") {
		return uri + PartName
	}
	return uri
}

// Encode writes records as CSV: a header of models.MetricFields then one
// row per record, in order.
func Encode(w io.Writer, records []models.MetricsRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(models.MetricFields()); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range records {
		if err := cw.Write(r.Strings()); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}

// compression picks the codec from the object key
type compression int

const (
	compressNone compression = iota
	compressGzip
	compressZstd
)

func compressionFor(key string) compression {
	lower := strings.ToLower(key)
	switch {
	case strings.HasSuffix(lower, ".gz"):
		return compressGzip
	case strings.HasSuffix(lower, ".zst"):
		return compressZstd
	default:
		return compressNone
	}
}

// encodeTo renders the artifact bytes for key
func encodeTo(buf *bytes.Buffer, key string, records []models.MetricsRecord) error {
	switch compressionFor(key) {
	case compressGzip:
		zw := gzip.NewWriter(buf)
		if err := Encode(zw, records); err != nil {
			zw.Close()
			return err
		}
		return zw.Close()
	case compressZstd:
		zw, err := zstd.NewWriter(buf, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return fmt.Errorf("failed to create zstd encoder: %w", err)
		}
		if err := Encode(zw, records); err != nil {
			zw.Close()
			return err
		}
		return zw.Close()
	default:
		return Encode(buf, records)
	}
}

// Writer persists result artifacts to any supported storage URI
type Writer struct {
	storage *storage.Config
	logger  zerolog.Logger
}

// NewWriter creates a writer using cfg for remote credentials
func NewWriter(cfg *storage.Config, logger zerolog.Logger) *Writer {
	return &Writer{
		storage: cfg,
		logger:  logger.With().Str("component", "results").Logger(),
	}
}

// Destination is an opened result target. Opening it before a sweep
// surfaces credential and addressing errors before any cell runs.
type Destination struct {
	uri     string
	key     string
	backend storage.Backend
	logger  zerolog.Logger
}

// Open resolves uri (after Target) and opens its backend
func (w *Writer) Open(ctx context.Context, uri string) (*Destination, error) {
	target := Target(uri)

	backend, key, err := storage.Resolve(ctx, target, w.storage, w.logger)
	if err != nil {
		return nil, err
	}

	return &Destination{uri: target, key: key, backend: backend, logger: w.logger}, nil
}

// URI returns the object URI records are written to
func (d *Destination) URI() string {
	return d.uri
}

// Write stores records, replacing any previous artifact
func (d *Destination) Write(ctx context.Context, records []models.MetricsRecord) error {
	var buf bytes.Buffer
	if err := encodeTo(&buf, d.key, records); err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}

	start := time.Now()
	if err := d.backend.Write(ctx, d.key, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write results to %s: %w", d.uri, err)
	}

	d.logger.Info().
		Str("uri", d.uri).
		Str("storage", d.backend.Type()).
		Int("records", len(records)).
		Int("bytes", buf.Len()).
		Dur("elapsed", time.Since(start)).
		Msg("Results written")

	return nil
}

// Close releases the backend
func (d *Destination) Close() error {
	return d.backend.Close()
}

// Write stores records at uri, replacing any previous artifact, and
// returns the URI of the object written.
func (w *Writer) Write(ctx context.Context, uri string, records []models.MetricsRecord) (string, error) {
	dest, err := w.Open(ctx, uri)
	if err != nil {
		return "", err
	}
	defer dest.Close()

	if err := dest.Write(ctx, records); err != nil {
		return "", err
	}
	return dest.URI(), nil
}
