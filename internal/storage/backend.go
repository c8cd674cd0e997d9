package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when the addressed object does not exist
var ErrNotFound = errors.New("object not found")

// Backend is an opaque byte store addressed by key (local, S3, Azure Blob)
type Backend interface {
	// Write writes data to the specified path, replacing any existing object
	Write(ctx context.Context, path string, data []byte) error

	// WriteReader writes data from a reader to the specified path (for large files)
	WriteReader(ctx context.Context, path string, reader io.Reader, size int64) error

	// Read reads data from the specified path
	Read(ctx context.Context, path string) ([]byte, error)

	// ReadTo reads data from the specified path and writes it to the writer
	ReadTo(ctx context.Context, path string, writer io.Writer) error

	// Exists checks if an object exists at the specified path
	Exists(ctx context.Context, path string) (bool, error)

	// Close closes any resources held by the backend
	Close() error

	// Type returns the storage type identifier ("local", "s3", "azure")
	Type() string
}

// contentType picks the object content type from the key suffix
func contentType(path string) string {
	switch {
	case hasSuffixFold(path, ".csv"):
		return "text/csv"
	case hasSuffixFold(path, ".gz"):
		return "application/gzip"
	case hasSuffixFold(path, ".zst"):
		return "application/zstd"
	case hasSuffixFold(path, ".prom"):
		return "text/plain; version=0.0.4"
	default:
		return "application/octet-stream"
	}
}
