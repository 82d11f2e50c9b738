// Package app holds the long-lived services of a render run and drives a run
// from readiness wait to published notice.
package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/pdfchunker/internal/clock/system"
	"github.com/JakeFAU/pdfchunker/internal/config"
	"github.com/JakeFAU/pdfchunker/internal/hash/sha256"
	"github.com/JakeFAU/pdfchunker/internal/health"
	iduuid "github.com/JakeFAU/pdfchunker/internal/id/uuid"
	"github.com/JakeFAU/pdfchunker/internal/metrics"
	"github.com/JakeFAU/pdfchunker/internal/pagination"
	"github.com/JakeFAU/pdfchunker/internal/pdf"
	"github.com/JakeFAU/pdfchunker/internal/progress"
	"github.com/JakeFAU/pdfchunker/internal/progress/sinks"
	"github.com/JakeFAU/pdfchunker/internal/publisher/pubsub"
	"github.com/JakeFAU/pdfchunker/internal/renderer/headless"
	"github.com/JakeFAU/pdfchunker/internal/storage"
	"github.com/JakeFAU/pdfchunker/internal/storage/postgres"
	"github.com/JakeFAU/pdfchunker/internal/store"
)

const (
	contentTypePDF = "application/pdf"

	// Notice kinds published after a run.
	KindCompleted = "run.completed"
	KindFailed    = "run.failed"
)

// Dependencies are the collaborators of an App. Ledger, Publisher and Waiter
// are optional.
type Dependencies struct {
	Renderer    pagination.Renderer
	Counter     pagination.PageCounter
	Merger      pagination.Merger
	Store       storage.BlobStore
	Destination storage.Destination
	Ledger      store.RunLedger
	Publisher   Publisher
	Waiter      ReadinessWaiter
	IDs         IDGenerator
	Hasher      Hasher
	Clock       Clock
	Logger      *zap.Logger
	Sinks       []progress.Sink
}

// App runs one render per Run call.
type App struct {
	cfg     config.Config
	deps    Dependencies
	logger  *zap.Logger
	closers []func() error
}

// Report describes a finished run.
type Report struct {
	RunID   uuid.UUID
	URI     string
	SHA256  string
	Bytes   int
	Summary pagination.Summary
}

// Notice is the payload published after every run.
type Notice struct {
	RunID      string    `json:"run_id"`
	Target     string    `json:"target"`
	Status     string    `json:"status"`
	URI        string    `json:"uri,omitempty"`
	SHA256     string    `json:"sha256,omitempty"`
	Bytes      int       `json:"bytes,omitempty"`
	TotalPages int       `json:"total_pages"`
	FirstPage  int       `json:"first_page,omitempty"`
	LastPage   int       `json:"last_page,omitempty"`
	Chunks     int       `json:"chunks"`
	Error      string    `json:"error,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

// New builds the production services described by cfg.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dest, err := storage.ParseDestination(cfg.Output.Path)
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, logger: logger}
	a.deps = Dependencies{
		Counter:     pdf.NewCounter(logger.Named("pdf")),
		Merger:      pdf.NewMerger(),
		Destination: dest,
		IDs:         iduuid.New(),
		Hasher:      sha256.New(),
		Clock:       system.New(),
		Logger:      logger,
		Sinks:       []progress.Sink{sinks.NewLogSink(logger.Named("progress")), sinks.NewMetricsSink()},
	}

	blobs, closeBlobs, err := storage.Open(ctx, dest, logger)
	if err != nil {
		return nil, fmt.Errorf("open output %s: %w", dest, err)
	}
	a.deps.Store = blobs
	a.closers = append(a.closers, closeBlobs)

	if cfg.DB.DSN != "" {
		runs, err := postgres.NewRunStore(ctx, postgres.Config{DSN: cfg.DB.DSN, Table: cfg.DB.Table})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open run ledger: %w", err)
		}
		if err := runs.EnsureSchema(ctx); err != nil {
			runs.Close()
			a.Close()
			return nil, err
		}
		a.deps.Ledger = runs
	}

	if cfg.PubSub.Topic != "" {
		pub, err := pubsub.Dial(ctx, cfg.PubSub.ProjectID, cfg.PubSub.Topic)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open publisher: %w", err)
		}
		a.deps.Publisher = pub
	}

	if cfg.HealthChecked() {
		a.deps.Waiter = health.New(health.Config{
			Path:     cfg.Health.Path,
			Timeout:  cfg.Health.Timeout,
			Interval: cfg.Health.Interval,
		}, &http.Client{Timeout: cfg.Health.Timeout}, logger.Named("health"))
	}

	renderer, err := headless.NewChromedp(headless.Config{
		URL:               cfg.Target,
		MaxTabs:           cfg.Render.Concurrency,
		Headless:          cfg.Browser.Headless,
		ExecPath:          cfg.Browser.ExecPath,
		UserAgent:         cfg.Browser.UserAgent,
		PrintMedia:        cfg.Browser.PrintMedia,
		NavigationTimeout: cfg.Browser.NavigationTimeout,
		WaitSelector:      cfg.Browser.WaitSelector,
		WaitUntil:         cfg.Browser.WaitUntil,
		SettleDelay:       cfg.Browser.SettleDelay,
		RenderQPS:         cfg.Browser.RenderQPS,
	}, logger.Named("chrome"))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create renderer: %w", err)
	}
	a.closers = append(a.closers, func() error {
		renderer.Close()
		return nil
	})
	a.deps.Renderer = renderer

	return a, nil
}

// NewWithDependencies builds an App around caller-supplied collaborators.
func NewWithDependencies(cfg config.Config, deps Dependencies) (*App, error) {
	switch {
	case deps.Renderer == nil:
		return nil, errors.New("renderer is required")
	case deps.Counter == nil:
		return nil, errors.New("page counter is required")
	case deps.Merger == nil:
		return nil, errors.New("merger is required")
	case deps.Store == nil:
		return nil, errors.New("blob store is required")
	case deps.Destination.Key == "":
		return nil, errors.New("destination key is required")
	}
	if deps.IDs == nil {
		deps.IDs = iduuid.New()
	}
	if deps.Hasher == nil {
		deps.Hasher = sha256.New()
	}
	if deps.Clock == nil {
		deps.Clock = system.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &App{cfg: cfg, deps: deps, logger: deps.Logger}, nil
}

// Run performs one render of the configured target.
func (a *App) Run(ctx context.Context) (Report, error) {
	runID, err := a.deps.IDs.NewRunID()
	if err != nil {
		return Report{}, err
	}
	logger := a.logger.With(zap.String("run_id", runID.String()))
	ctx, span := otel.Tracer("github.com/JakeFAU/pdfchunker/internal/app").Start(ctx, "render.run",
		trace.WithAttributes(
			attribute.String("run.id", runID.String()),
			attribute.String("render.target", a.cfg.Target),
			attribute.Int("render.chunk_size", a.cfg.Render.ChunkSize),
			attribute.Int("render.concurrency", a.cfg.Render.Concurrency),
		))
	defer span.End()
	started := a.deps.Clock.Now()
	rec := store.RunRecord{
		ID:          runID,
		Target:      a.cfg.Target,
		StartedAt:   started,
		ChunkSize:   a.cfg.Render.ChunkSize,
		Concurrency: a.cfg.Render.Concurrency,
	}

	if a.cfg.Metrics.Addr != "" {
		metricsCtx, stopMetrics := context.WithCancel(ctx)
		defer stopMetrics()
		go func() {
			if err := metrics.Serve(metricsCtx, a.cfg.Metrics.Addr, logger); err != nil {
				logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	report, err := a.render(ctx, runID, logger)
	rec.FinishedAt = a.deps.Clock.Now()
	if err != nil {
		msg := err.Error()
		rec.Status = store.RunFailed
		if errors.Is(err, pagination.ErrEmptyRun) {
			rec.Status = store.RunEmpty
		}
		rec.ErrorMessage = &msg
		span.RecordError(err)
		span.SetStatus(codes.Error, msg)
		a.record(ctx, logger, rec)
		a.publish(ctx, logger, KindFailed, a.notice(rec))
		return Report{RunID: runID}, err
	}

	sum := report.Summary
	rec.Status = store.RunSucceeded
	rec.FirstPage, rec.LastPage, rec.TotalPages = sum.FirstPage, sum.LastPage, sum.TotalPages
	rec.Chunks, rec.Boundary = sum.Chunks, sum.Boundary
	rec.OutputURI, rec.OutputBytes, rec.SHA256 = report.URI, report.Bytes, report.SHA256
	span.SetAttributes(attribute.Int("render.pages", sum.TotalPages), attribute.Int("render.chunks", sum.Chunks))
	a.record(ctx, logger, rec)
	a.publish(ctx, logger, KindCompleted, a.notice(rec))

	logger.Info("run complete",
		zap.String("uri", report.URI),
		zap.Int("pages", sum.TotalPages),
		zap.Int("chunks", sum.Chunks),
		zap.Duration("dur", rec.FinishedAt.Sub(started)),
	)
	return report, nil
}

func (a *App) render(ctx context.Context, runID uuid.UUID, logger *zap.Logger) (Report, error) {
	if a.deps.Waiter != nil {
		if err := a.deps.Waiter.Wait(ctx, a.cfg.Target); err != nil {
			return Report{}, err
		}
	}
	if p, ok := a.deps.Renderer.(Preparer); ok {
		if err := p.Prepare(ctx); err != nil {
			return Report{}, fmt.Errorf("prepare renderer: %w", err)
		}
	}

	emitter := progress.NewFanout(runID.String(), logger.Named("progress"), a.deps.Sinks...)
	engine, err := pagination.NewEngine(a.deps.Renderer, a.deps.Counter, a.deps.Merger, pagination.Options{
		RenderTimeout: a.cfg.Render.Timeout,
		Emitter:       emitter,
		Logger:        logger.Named("pagination"),
		Clock:         a.deps.Clock,
	})
	if err != nil {
		return Report{}, err
	}
	result, err := engine.Paginate(ctx, a.cfg.Render.ChunkSize, a.cfg.Render.Concurrency)
	if err != nil {
		return Report{}, err
	}

	digest := a.deps.Hasher.Hash(result.Output)
	uri, err := a.deps.Store.PutObject(ctx, a.deps.Destination.Key, contentTypePDF, bytes.NewReader(result.Output))
	if err != nil {
		return Report{}, fmt.Errorf("write %s: %w", a.deps.Destination, err)
	}
	return Report{
		RunID:   runID,
		URI:     uri,
		SHA256:  digest,
		Bytes:   len(result.Output),
		Summary: result.Summary,
	}, nil
}

// record and publish are best effort: a failing ledger or topic never fails a run.
func (a *App) record(ctx context.Context, logger *zap.Logger, rec store.RunRecord) {
	if a.deps.Ledger == nil {
		return
	}
	if err := a.deps.Ledger.RecordRun(ctx, rec); err != nil {
		logger.Warn("record run failed", zap.Error(err))
	}
}

func (a *App) publish(ctx context.Context, logger *zap.Logger, kind string, n Notice) {
	if a.deps.Publisher == nil {
		return
	}
	id, err := a.deps.Publisher.Publish(ctx, kind, n)
	if err != nil {
		logger.Warn("publish notice failed", zap.String("kind", kind), zap.Error(err))
		return
	}
	logger.Debug("notice published", zap.String("kind", kind), zap.String("message_id", id))
}

func (a *App) notice(rec store.RunRecord) Notice {
	n := Notice{
		RunID:      rec.ID.String(),
		Target:     rec.Target,
		Status:     string(rec.Status),
		URI:        rec.OutputURI,
		SHA256:     rec.SHA256,
		Bytes:      rec.OutputBytes,
		TotalPages: rec.TotalPages,
		FirstPage:  rec.FirstPage,
		LastPage:   rec.LastPage,
		Chunks:     rec.Chunks,
		FinishedAt: rec.FinishedAt,
	}
	if rec.ErrorMessage != nil {
		n.Error = *rec.ErrorMessage
	}
	return n
}

// Close tears down the browser, the ledger pool and the publisher.
func (a *App) Close() {
	if a.deps.Publisher != nil {
		if err := a.deps.Publisher.Close(); err != nil {
			a.logger.Warn("close publisher", zap.Error(err))
		}
	}
	if a.deps.Ledger != nil {
		a.deps.Ledger.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close resource", zap.Error(err))
		}
	}
	a.closers = nil
}

// Lines renders the two summary lines printed after a successful run.
func (r Report) Lines() []string {
	s := r.Summary
	return []string{
		fmt.Sprintf("Done: %s", r.URI),
		fmt.Sprintf("Pages: %d (range %d–%d), chunks: %d, concurrency: %d",
			s.TotalPages, s.FirstPage, s.LastPage, s.Chunks, s.Concurrency),
	}
}
