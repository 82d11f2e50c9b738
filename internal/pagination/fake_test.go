package pagination

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JakeFAU/pdfchunker/internal/progress"
)

// fakeDocument renders "pages" as comma separated page numbers so that the
// merged output spells out the page order.
type fakeDocument struct {
	pages int
	// emptyPastEnd makes out-of-range requests return an empty artifact
	// instead of ErrRangeExceeded.
	emptyPastEnd bool
	// delay returns a per-range render latency.
	delay func(r Range) time.Duration
	// failOn returns a non-nil error for ranges that should fail.
	failOn func(r Range) error

	mu       sync.Mutex
	requests []Range
	calls    atomic.Int64
}

func (d *fakeDocument) Render(ctx context.Context, r Range) ([]byte, error) {
	d.calls.Add(1)
	d.mu.Lock()
	d.requests = append(d.requests, r)
	d.mu.Unlock()

	if d.delay != nil {
		select {
		case <-time.After(d.delay(r)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if d.failOn != nil {
		if err := d.failOn(r); err != nil {
			return nil, err
		}
	}
	if r.Start > d.pages {
		if d.emptyPastEnd {
			return []byte{}, nil
		}
		return nil, fmt.Errorf("print: %w", ErrRangeExceeded)
	}
	end := r.End
	if end > d.pages {
		end = d.pages
	}
	var b strings.Builder
	for p := r.Start; p <= end; p++ {
		if p > r.Start {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(p))
	}
	return []byte(b.String()), nil
}

func (d *fakeDocument) ranges() []Range {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Range(nil), d.requests...)
}

func countFakePages(artifact []byte) int {
	if len(artifact) == 0 {
		return 0
	}
	return bytes.Count(artifact, []byte{','}) + 1
}

type fakeMerger struct {
	calls atomic.Int64
	err   error
}

func (m *fakeMerger) Merge(_ context.Context, artifacts [][]byte) ([]byte, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	return bytes.Join(artifacts, []byte{','}), nil
}

func expectedOutput(pages int) string {
	parts := make([]string, pages)
	for i := range parts {
		parts[i] = strconv.Itoa(i + 1)
	}
	return strings.Join(parts, ",")
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (r *recordingEmitter) Emit(evt progress.Event) {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
}

func (r *recordingEmitter) byStage(stage progress.Stage) []progress.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []progress.Event
	for _, evt := range r.events {
		if evt.Stage == stage {
			out = append(out, evt)
		}
	}
	return out
}

var errBoom = errors.New("boom")
