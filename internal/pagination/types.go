package pagination

import (
	"context"
	"fmt"
	"time"
)

// Range is an inclusive page range claimed from the Cursor.
type Range struct {
	Start int
	End   int
}

// Len returns the number of pages requested by the range.
func (r Range) Len() int {
	return r.End - r.Start + 1
}

// String formats the range the way print dialogs expect it ("11-20").
func (r Range) String() string {
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// ChunkResult is a successfully rendered and counted chunk.
type ChunkResult struct {
	Start     int
	End       int
	PageCount int
	Artifact  []byte
}

// LastPage returns the last page actually present in the chunk.
func (c ChunkResult) LastPage() int {
	return c.Start + c.PageCount - 1
}

// Summary carries the statistics reported after a successful run.
type Summary struct {
	FirstPage   int
	LastPage    int
	TotalPages  int
	Chunks      int
	Concurrency int
	// Boundary is the stopAt value accepted by the cursor.
	Boundary int
	Duration time.Duration
}

// RunResult is the collector's output for a successful run.
type RunResult struct {
	Results []ChunkResult
	Output  []byte
	Summary Summary
}

// Renderer turns a page range into an artifact. It must return an error
// wrapping ErrRangeExceeded when the whole range lies past the end of the
// document.
type Renderer interface {
	Render(ctx context.Context, r Range) ([]byte, error)
}

// PageCounter counts pages in an artifact, returning 0 when it cannot parse it.
type PageCounter interface {
	CountPages(artifact []byte) int
}

// Merger concatenates artifacts in the given order.
type Merger interface {
	Merge(ctx context.Context, artifacts [][]byte) ([]byte, error)
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(ctx context.Context, r Range) ([]byte, error)

// Render calls f.
func (f RendererFunc) Render(ctx context.Context, r Range) ([]byte, error) {
	return f(ctx, r)
}

// PageCounterFunc adapts a function to the PageCounter interface.
type PageCounterFunc func(artifact []byte) int

// CountPages calls f.
func (f PageCounterFunc) CountPages(artifact []byte) int {
	return f(artifact)
}

// MergerFunc adapts a function to the Merger interface.
type MergerFunc func(ctx context.Context, artifacts [][]byte) ([]byte, error)

// Merge calls f.
func (f MergerFunc) Merge(ctx context.Context, artifacts [][]byte) ([]byte, error) {
	return f(ctx, artifacts)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
