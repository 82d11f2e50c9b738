// Package memory keeps written objects in memory.
package memory

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// BlobStore stores objects in memory and returns memory:// URIs.
type BlobStore struct {
	bucket string

	mu   sync.RWMutex
	data map[string][]byte
}

// NewBlobStore creates an in-memory blob store named bucket.
func NewBlobStore(bucket string) *BlobStore {
	if bucket == "" {
		bucket = "local"
	}
	return &BlobStore{
		bucket: bucket,
		data:   make(map[string][]byte),
	}
}

// PutObject stores a copy of the content and returns its URI.
func (s *BlobStore) PutObject(ctx context.Context, path string, _ string, data io.Reader) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("write canceled: %w", err)
	}
	byteData, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("failed to read data from reader: %w", err)
	}

	s.mu.Lock()
	s.data[path] = byteData
	s.mu.Unlock()
	return fmt.Sprintf("memory://%s/%s", s.bucket, path), nil
}

// Object returns a copy of the stored object.
func (s *BlobStore) Object(path string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[path]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}
