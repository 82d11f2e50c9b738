package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDestination(t *testing.T) {
	tmp := t.TempDir()
	tests := []struct {
		name    string
		raw     string
		want    Destination
		wantErr bool
	}{
		{name: "local path", raw: filepath.Join(tmp, "out", "doc.pdf"), want: Destination{Scheme: SchemeFile, Root: filepath.Join(tmp, "out"), Key: "doc.pdf"}},
		{name: "file uri", raw: "file://" + filepath.Join(tmp, "doc.pdf"), want: Destination{Scheme: SchemeFile, Root: tmp, Key: "doc.pdf"}},
		{name: "gcs", raw: "gs://reports/2024/doc.pdf", want: Destination{Scheme: SchemeGCS, Root: "reports", Key: "2024/doc.pdf"}},
		{name: "memory", raw: "memory://scratch/doc.pdf", want: Destination{Scheme: SchemeMemory, Root: "scratch", Key: "doc.pdf"}},
		{name: "empty", raw: "  ", wantErr: true},
		{name: "gcs without key", raw: "gs://reports", wantErr: true},
		{name: "unknown scheme", raw: "s3://bucket/doc.pdf", wantErr: true},
		{name: "directory", raw: tmp + string(filepath.Separator), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDestination(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDestinationString(t *testing.T) {
	assert.Equal(t, "gs://b/k.pdf", Destination{Scheme: SchemeGCS, Root: "b", Key: "k.pdf"}.String())
	assert.Equal(t, filepath.Join("/tmp", "k.pdf"), Destination{Scheme: SchemeFile, Root: "/tmp", Key: "k.pdf"}.String())
}

func TestOpenLocalWritesFile(t *testing.T) {
	tmp := t.TempDir()
	dest, err := ParseDestination(filepath.Join(tmp, "nested", "combined.pdf"))
	require.NoError(t, err)

	store, closeFn, err := Open(context.Background(), dest, nil)
	require.NoError(t, err)
	defer func() { require.NoError(t, closeFn()) }()

	uri, err := store.PutObject(context.Background(), dest.Key, "application/pdf", bytes.NewReader([]byte("%PDF")))
	require.NoError(t, err)
	assert.Equal(t, "file://"+filepath.Join(tmp, "nested", "combined.pdf"), uri)

	// #nosec G304 -- test reads from the controlled temp directory.
	got, err := os.ReadFile(filepath.Join(tmp, "nested", "combined.pdf"))
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF"), got)
}

func TestOpenMemory(t *testing.T) {
	store, closeFn, err := Open(context.Background(), Destination{Scheme: SchemeMemory, Root: "scratch", Key: "a.pdf"}, nil)
	require.NoError(t, err)
	require.NoError(t, closeFn())
	uri, err := store.PutObject(context.Background(), "a.pdf", "application/pdf", bytes.NewReader(nil))
	require.NoError(t, err)
	assert.Equal(t, "memory://scratch/a.pdf", uri)
}

func TestOpenUnknownScheme(t *testing.T) {
	_, _, err := Open(context.Background(), Destination{Scheme: "ftp"}, nil)
	require.Error(t, err)
}
