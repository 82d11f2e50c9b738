package pagination

import (
	"errors"
	"fmt"
)

var (
	// ErrRangeExceeded is wrapped by renderers when the requested range starts
	// past the last page of the document. It is a boundary signal, never
	// returned from Paginate.
	ErrRangeExceeded = errors.New("page range exceeds page count")
	// ErrEmptyRun reports that no chunk produced any page. This usually means
	// the wrong document or print styles rather than a transient fault.
	ErrEmptyRun = errors.New("no pages produced")
	// ErrInvalidChunkSize is returned for chunk sizes below 1.
	ErrInvalidChunkSize = errors.New("chunk size must be >= 1")
	// ErrInvalidConcurrency is returned for worker counts below 1.
	ErrInvalidConcurrency = errors.New("concurrency must be >= 1")
)

// RenderError is a render failure that is not a boundary signal. It is fatal
// to the run.
type RenderError struct {
	Range Range
	Err   error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render pages %s: %v", e.Range, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// MergeError wraps a failure of the Merger.
type MergeError struct {
	Chunks int
	Err    error
}

func (e *MergeError) Error() string {
	return fmt.Sprintf("merge %d chunks: %v", e.Chunks, e.Err)
}

func (e *MergeError) Unwrap() error {
	return e.Err
}

// CoverageKind names the way collected chunks fail to tile the document.
type CoverageKind string

// Coverage violations detected by the collector.
const (
	CoverageGap          CoverageKind = "gap"
	CoverageOverlap      CoverageKind = "overlap"
	CoverageBadStart     CoverageKind = "bad_start"
	CoveragePastBoundary CoverageKind = "past_boundary"
)

// CoverageError reports chunk results that do not cover [1, total] exactly
// once.
type CoverageError struct {
	Kind CoverageKind
	// Page is the first page at which the violation was found.
	Page int
	// Expected is the page the collector expected at that position.
	Expected int
}

func (e *CoverageError) Error() string {
	return fmt.Sprintf("chunk coverage %s at page %d (expected %d)", e.Kind, e.Page, e.Expected)
}
