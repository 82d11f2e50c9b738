package progress

import (
	"time"

	"go.uber.org/zap"
)

// Sink consumes events. Implementations are invoked concurrently.
type Sink interface {
	Consume(evt Event)
}

// Emitter publishes individual events so the pagination engine can remain
// agnostic about where they end up.
type Emitter interface {
	Emit(evt Event)
}

// Nop discards every event.
type Nop struct{}

// Emit implements Emitter.
func (Nop) Emit(Event) {}

// Fanout stamps events with a run ID and timestamp and forwards them to every
// sink. Events that fail Validate are dropped.
type Fanout struct {
	runID  string
	now    func() time.Time
	logger *zap.Logger
	sinks  []Sink
}

// NewFanout returns an emitter that forwards to sinks. A nil logger is
// replaced with a no-op.
func NewFanout(runID string, logger *zap.Logger, sinks ...Sink) *Fanout {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fanout{
		runID:  runID,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
		sinks:  append([]Sink(nil), sinks...),
	}
}

// Emit implements Emitter.
func (f *Fanout) Emit(evt Event) {
	if err := evt.Validate(); err != nil {
		f.logger.Debug("dropping progress event", zap.String("stage", string(evt.Stage)), zap.Error(err))
		return
	}
	if evt.RunID == "" {
		evt.RunID = f.runID
	}
	if evt.TS.IsZero() {
		evt.TS = f.now()
	}
	for _, s := range f.sinks {
		s.Consume(evt)
	}
}
