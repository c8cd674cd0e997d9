package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// ErrUnsupportedScheme is returned for URIs no backend can serve
var ErrUnsupportedScheme = errors.New("unsupported storage scheme")

// Location is a parsed storage URI
type Location struct {
	Scheme string // "file", "s3" or "azure"
	Root   string // bucket, container, or local directory
	Key    string // object key relative to Root
}

// ParseURI parses s3://bucket/key, azure://container/key (az:// too),
// file:///abs/path and bare filesystem paths.
func ParseURI(uri string) (Location, error) {
	if uri == "" {
		return Location{}, fmt.Errorf("empty storage URI")
	}

	if !strings.Contains(uri, "://") {
		return localLocation(uri)
	}

	u, err := url.Parse(uri)
	if err != nil {
		return Location{}, fmt.Errorf("invalid storage URI %q: %w", uri, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "file":
		return localLocation(u.Path)
	case "s3", "s3a":
		return objectLocation("s3", uri, u)
	case "azure", "az", "abfs":
		return objectLocation("azure", uri, u)
	default:
		return Location{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}

func objectLocation(scheme, uri string, u *url.URL) (Location, error) {
	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" {
		return Location{}, fmt.Errorf("storage URI %q has no bucket/container", uri)
	}
	if key == "" {
		return Location{}, fmt.Errorf("storage URI %q has no object key", uri)
	}
	return Location{Scheme: scheme, Root: u.Host, Key: key}, nil
}

func localLocation(path string) (Location, error) {
	if path == "" {
		return Location{}, fmt.Errorf("empty local path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return Location{}, fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	return Location{Scheme: "file", Root: filepath.Dir(abs), Key: filepath.Base(abs)}, nil
}

// IsLocal reports whether the location is on the local filesystem
func (l Location) IsLocal() bool {
	return l.Scheme == "file"
}

// LocalPath returns the filesystem path of a local location
func (l Location) LocalPath() string {
	return filepath.Join(l.Root, l.Key)
}

// String renders the location back as a URI
func (l Location) String() string {
	if l.IsLocal() {
		return l.LocalPath()
	}
	return l.Scheme + "://" + l.Root + "/" + l.Key
}

// Config carries the credentials needed to open any backend
type Config struct {
	S3    S3Config
	Azure AzureBlobConfig
}

// Open creates the backend serving loc. The bucket/container (or local
// root) comes from loc; everything else comes from cfg.
func Open(ctx context.Context, loc Location, cfg *Config, logger zerolog.Logger) (Backend, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	switch loc.Scheme {
	case "file":
		return NewLocalBackend(loc.Root, logger)
	case "s3":
		s3cfg := cfg.S3
		s3cfg.Bucket = loc.Root
		return NewS3Backend(ctx, &s3cfg, logger)
	case "azure":
		azcfg := cfg.Azure
		azcfg.ContainerName = loc.Root
		return NewAzureBlobBackend(ctx, &azcfg, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, loc.Scheme)
	}
}

// Resolve parses uri and opens its backend, returning the object key
func Resolve(ctx context.Context, uri string, cfg *Config, logger zerolog.Logger) (Backend, string, error) {
	loc, err := ParseURI(uri)
	if err != nil {
		return nil, "", err
	}
	backend, err := Open(ctx, loc, cfg, logger)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open %s storage for %s: %w", loc.Scheme, uri, err)
	}
	return backend, loc.Key, nil
}

func hasSuffixFold(s, suffix string) bool {
	return len(s) >= len(suffix) && strings.EqualFold(s[len(s)-len(suffix):], suffix)
}
