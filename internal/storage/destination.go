// Package storage resolves where the merged document is written and opens the
// matching blob store.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/pdfchunker/internal/storage/gcs"
	"github.com/JakeFAU/pdfchunker/internal/storage/local"
	"github.com/JakeFAU/pdfchunker/internal/storage/memory"
)

// BlobStore writes an object and returns its URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Supported destination schemes.
const (
	SchemeFile   = "file"
	SchemeGCS    = "gs"
	SchemeMemory = "memory"
)

// Destination is a parsed output location. Root is a directory for file
// destinations and a bucket for gs destinations; Key is the object name under it.
type Destination struct {
	Scheme string
	Root   string
	Key    string
}

// String renders the destination back into its URI form.
func (d Destination) String() string {
	switch d.Scheme {
	case SchemeGCS, SchemeMemory:
		return fmt.Sprintf("%s://%s/%s", d.Scheme, d.Root, d.Key)
	default:
		return filepath.Join(d.Root, d.Key)
	}
}

// ParseDestination accepts a filesystem path, a file:// URI, gs://bucket/key or memory://bucket/key.
func ParseDestination(raw string) (Destination, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Destination{}, fmt.Errorf("output path is required")
	}

	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return Destination{}, fmt.Errorf("parse output %q: %w", raw, err)
		}
		switch u.Scheme {
		case SchemeGCS, SchemeMemory:
			key := strings.TrimPrefix(u.Path, "/")
			if u.Host == "" || key == "" {
				return Destination{}, fmt.Errorf("output %q needs a bucket and an object name", raw)
			}
			return Destination{Scheme: u.Scheme, Root: u.Host, Key: key}, nil
		case SchemeFile:
			raw = u.Path
		default:
			return Destination{}, fmt.Errorf("unsupported output scheme %q", u.Scheme)
		}
	}

	abs, err := filepath.Abs(raw)
	if err != nil {
		return Destination{}, fmt.Errorf("resolve output %q: %w", raw, err)
	}
	if strings.HasSuffix(raw, string(filepath.Separator)) {
		return Destination{}, fmt.Errorf("output %q is a directory", raw)
	}
	return Destination{Scheme: SchemeFile, Root: filepath.Dir(abs), Key: filepath.Base(abs)}, nil
}

// Open returns a blob store for the destination together with a close func.
func Open(ctx context.Context, dest Destination, logger *zap.Logger) (BlobStore, func() error, error) {
	noop := func() error { return nil }
	switch dest.Scheme {
	case SchemeFile:
		store, err := local.New(local.Config{BaseDir: dest.Root})
		if err != nil {
			return nil, nil, err
		}
		return store, noop, nil
	case SchemeGCS:
		store, err := gcs.Dial(ctx, gcs.Config{Bucket: dest.Root}, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case SchemeMemory:
		return memory.NewBlobStore(dest.Root), noop, nil
	default:
		return nil, nil, fmt.Errorf("unsupported output scheme %q", dest.Scheme)
	}
}
