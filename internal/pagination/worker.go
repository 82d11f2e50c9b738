package pagination

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/pdfchunker/internal/progress"
)

// worker claims ranges from the shared cursor until it observes a termination
// signal, a fatal error or an exhausted cursor.
type worker struct {
	id      int
	engine  *Engine
	cursor  *Cursor
	results *collector
}

func (w *worker) run(ctx context.Context) {
	e := w.engine
	logger := e.logger.With(zap.Int("worker", w.id))
	e.emitter.Emit(progress.Event{Stage: progress.StageWorkerStart, Worker: w.id})

	chunks := 0
	note := ""
	defer func() {
		e.emitter.Emit(progress.Event{Stage: progress.StageWorkerDone, Worker: w.id, Pages: chunks, Note: note})
	}()

	for {
		if err := ctx.Err(); err != nil {
			note = "run context done"
			w.results.fail(fmt.Errorf("pagination canceled: %w", err))
			return
		}
		r, ok := w.cursor.Claim()
		if !ok {
			note = "cursor exhausted"
			return
		}

		started := e.clock.Now()
		artifact, err := w.render(ctx, r)
		if err != nil {
			if errors.Is(err, ErrRangeExceeded) {
				w.propose(r, SignalRangeExceeded, 0)
				note = SignalRangeExceeded.String()
				return
			}
			if w.results.fail(&RenderError{Range: r, Err: err}) {
				logger.Error("render failed", zap.Stringer("range", r), zap.Error(err))
			} else {
				logger.Warn("render failed after an earlier fatal error", zap.Stringer("range", r), zap.Error(err))
			}
			note = "render error"
			return
		}

		pages := e.counter.CountPages(artifact)
		signal := Classify(r, pages)
		if signal == SignalEmptyChunk {
			w.propose(r, signal, pages)
			note = signal.String()
			return
		}

		w.results.add(ChunkResult{Start: r.Start, End: r.End, PageCount: pages, Artifact: artifact})
		chunks++
		e.emitter.Emit(progress.Event{
			Stage:  progress.StageChunkRendered,
			Worker: w.id,
			Start:  r.Start,
			End:    r.End,
			Pages:  pages,
			Dur:    e.clock.Now().Sub(started),
		})

		if signal.Terminal() {
			w.propose(r, signal, pages)
			note = signal.String()
			return
		}
	}
}

func (w *worker) render(ctx context.Context, r Range) ([]byte, error) {
	if w.engine.timeout <= 0 {
		return w.engine.renderer.Render(ctx, r)
	}
	renderCtx, cancel := context.WithTimeout(ctx, w.engine.timeout)
	defer cancel()
	return w.engine.renderer.Render(renderCtx, r)
}

func (w *worker) propose(r Range, signal Signal, pages int) {
	candidate := BoundaryFor(signal, r, pages)
	accepted := w.cursor.ProposeBoundary(candidate)
	w.engine.emitter.Emit(progress.Event{
		Stage:    progress.StageBoundary,
		Worker:   w.id,
		Start:    r.Start,
		End:      r.End,
		Pages:    pages,
		Signal:   signal.String(),
		Boundary: candidate,
		Accepted: accepted,
	})
}
