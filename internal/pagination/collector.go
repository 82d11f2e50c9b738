package pagination

import (
	"context"
	"sort"
	"sync"
)

// collector gathers chunk results and the first fatal error from all workers.
type collector struct {
	mu      sync.Mutex
	results []ChunkResult
	fatal   error
}

func (c *collector) add(res ChunkResult) {
	c.mu.Lock()
	c.results = append(c.results, res)
	c.mu.Unlock()
}

// fail records err unless an earlier failure was already recorded. It reports
// whether err became the run's fatal error.
func (c *collector) fail(err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fatal != nil {
		return false
	}
	c.fatal = err
	return true
}

func (c *collector) failure() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fatal
}

// ordered returns the results sorted by start page. Call only after the pool
// has drained.
func (c *collector) ordered() []ChunkResult {
	c.mu.Lock()
	out := append([]ChunkResult(nil), c.results...)
	c.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// VerifyCoverage checks that ordered results tile [1, last] exactly once and
// do not run past boundary. A boundary <= 0 is treated as unknown.
func VerifyCoverage(results []ChunkResult, boundary int) error {
	if len(results) == 0 {
		return ErrEmptyRun
	}
	if results[0].Start != 1 {
		return &CoverageError{Kind: CoverageBadStart, Page: results[0].Start, Expected: 1}
	}
	next := 1
	for _, res := range results {
		switch {
		case res.Start > next:
			return &CoverageError{Kind: CoverageGap, Page: res.Start, Expected: next}
		case res.Start < next:
			return &CoverageError{Kind: CoverageOverlap, Page: res.Start, Expected: next}
		}
		next = res.Start + res.PageCount
	}
	last := results[len(results)-1].LastPage()
	if boundary > 0 && last > boundary {
		return &CoverageError{Kind: CoveragePastBoundary, Page: last, Expected: boundary}
	}
	return nil
}

// Summarize derives run statistics from ordered results.
func Summarize(results []ChunkResult) Summary {
	if len(results) == 0 {
		return Summary{}
	}
	total := 0
	for _, res := range results {
		total += res.PageCount
	}
	return Summary{
		FirstPage:  results[0].Start,
		LastPage:   results[len(results)-1].LastPage(),
		TotalPages: total,
		Chunks:     len(results),
	}
}

func mergeOrdered(ctx context.Context, merger Merger, results []ChunkResult) ([]byte, error) {
	artifacts := make([][]byte, len(results))
	for i, res := range results {
		artifacts[i] = res.Artifact
	}
	out, err := merger.Merge(ctx, artifacts)
	if err != nil {
		return nil, &MergeError{Chunks: len(artifacts), Err: err}
	}
	return out, nil
}
