package pagination

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/pdfchunker/internal/progress"
)

// Options tunes an Engine. Zero values select defaults.
type Options struct {
	// RenderTimeout bounds every Render call. Zero disables the bound.
	RenderTimeout time.Duration
	Emitter       progress.Emitter
	Logger        *zap.Logger
	Clock         Clock
}

// Engine runs the speculative parallel pagination protocol.
type Engine struct {
	renderer Renderer
	counter  PageCounter
	merger   Merger
	timeout  time.Duration
	emitter  progress.Emitter
	logger   *zap.Logger
	clock    Clock
}

// NewEngine wires the three collaborators into an Engine.
func NewEngine(renderer Renderer, counter PageCounter, merger Merger, opts Options) (*Engine, error) {
	if renderer == nil {
		return nil, errors.New("renderer is required")
	}
	if counter == nil {
		return nil, errors.New("page counter is required")
	}
	if merger == nil {
		return nil, errors.New("merger is required")
	}
	if opts.RenderTimeout < 0 {
		return nil, fmt.Errorf("render timeout must be >= 0, got %s", opts.RenderTimeout)
	}
	e := &Engine{
		renderer: renderer,
		counter:  counter,
		merger:   merger,
		timeout:  opts.RenderTimeout,
		emitter:  opts.Emitter,
		logger:   opts.Logger,
		clock:    opts.Clock,
	}
	if e.emitter == nil {
		e.emitter = progress.Nop{}
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.clock == nil {
		e.clock = systemClock{}
	}
	return e, nil
}

// Paginate renders the document in chunks of chunkSize pages using concurrency
// workers and merges the chunks into one artifact.
//
// A fatal render error does not stop sibling workers; they keep rendering
// until the pool drains, and the error is returned afterwards without merging.
func (e *Engine) Paginate(ctx context.Context, chunkSize, concurrency int) (RunResult, error) {
	if chunkSize < 1 {
		return RunResult{}, ErrInvalidChunkSize
	}
	if concurrency < 1 {
		return RunResult{}, ErrInvalidConcurrency
	}

	started := e.clock.Now()
	e.emitter.Emit(progress.Event{Stage: progress.StageRunStart})
	e.logger.Info("pagination started", zap.Int("chunk_size", chunkSize), zap.Int("concurrency", concurrency))

	cursor := NewCursor(chunkSize)
	col := &collector{}

	var wg sync.WaitGroup
	for i := 1; i <= concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			w := &worker{id: id, engine: e, cursor: cursor, results: col}
			w.run(ctx)
		}(i)
	}
	wg.Wait()

	res, err := e.collect(ctx, cursor, col, concurrency)
	elapsed := e.clock.Now().Sub(started)
	if err != nil {
		e.emitter.Emit(progress.Event{Stage: progress.StageRunError, Note: err.Error(), Dur: elapsed})
		return RunResult{}, err
	}
	res.Summary.Duration = elapsed
	e.emitter.Emit(progress.Event{
		Stage: progress.StageRunDone,
		Start: res.Summary.FirstPage,
		End:   res.Summary.LastPage,
		Pages: res.Summary.TotalPages,
		Dur:   elapsed,
	})
	return res, nil
}

func (e *Engine) collect(ctx context.Context, cursor *Cursor, col *collector, concurrency int) (RunResult, error) {
	if err := col.failure(); err != nil {
		return RunResult{}, err
	}
	results := col.ordered()
	if len(results) == 0 {
		return RunResult{}, ErrEmptyRun
	}

	boundary, _ := cursor.Boundary()
	if err := VerifyCoverage(results, boundary); err != nil {
		return RunResult{}, err
	}

	summary := Summarize(results)
	summary.Concurrency = concurrency
	summary.Boundary = boundary
	if boundary != summary.LastPage {
		e.logger.Warn("accepted boundary differs from last rendered page",
			zap.Int("stop_at", boundary),
			zap.Int("last_page", summary.LastPage),
		)
	}

	out, err := mergeOrdered(ctx, e.merger, results)
	if err != nil {
		return RunResult{}, err
	}
	return RunResult{Results: results, Output: out, Summary: summary}, nil
}
