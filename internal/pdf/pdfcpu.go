// Package pdf counts and merges PDF documents with pdfcpu.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/zap"
)

var disableConfigDir sync.Once

func configuration() *model.Configuration {
	disableConfigDir.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Counter implements pagination.PageCounter.
type Counter struct {
	logger *zap.Logger
}

// NewCounter returns a page counter. A nil logger is replaced with a no-op.
func NewCounter(logger *zap.Logger) *Counter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Counter{logger: logger}
}

// CountPages returns the number of pages in artifact, or 0 when it cannot be parsed.
func (c *Counter) CountPages(artifact []byte) (n int) {
	if len(artifact) == 0 {
		return 0
	}
	// pdfcpu may panic on malformed input.
	defer func() {
		if rec := recover(); rec != nil {
			c.logger.Warn("pdf page count panicked", zap.Any("panic", rec))
			n = 0
		}
	}()
	n, err := api.PageCount(bytes.NewReader(artifact), configuration())
	if err != nil {
		c.logger.Debug("pdf page count failed", zap.Error(err), zap.Int("bytes", len(artifact)))
		return 0
	}
	return n
}

// Merger implements pagination.Merger.
type Merger struct{}

// NewMerger returns a PDF merger.
func NewMerger() *Merger {
	return &Merger{}
}

// Merge concatenates artifacts in order into a single PDF.
func (Merger) Merge(ctx context.Context, artifacts [][]byte) ([]byte, error) {
	if len(artifacts) == 0 {
		return nil, errors.New("no documents to merge")
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("merge canceled: %w", err)
	}
	if len(artifacts) == 1 {
		return append([]byte(nil), artifacts[0]...), nil
	}
	readers := make([]io.ReadSeeker, 0, len(artifacts))
	for _, a := range artifacts {
		readers = append(readers, bytes.NewReader(a))
	}
	var out bytes.Buffer
	if err := api.MergeRaw(readers, &out, false, configuration()); err != nil {
		return nil, fmt.Errorf("merge %d documents: %w", len(artifacts), err)
	}
	return out.Bytes(), nil
}
