package sinks

import (
	"go.uber.org/zap"

	"github.com/JakeFAU/pdfchunker/internal/progress"
)

// LogSink emits structured logs for every progress event.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs the event at a level matching its stage.
func (s *LogSink) Consume(evt progress.Event) {
	fields := []zap.Field{
		zap.String("run_id", evt.RunID),
		zap.String("stage", string(evt.Stage)),
	}
	if evt.Worker > 0 {
		fields = append(fields, zap.Int("worker", evt.Worker))
	}
	if evt.Start > 0 {
		fields = append(fields, zap.Int("start", evt.Start), zap.Int("end", evt.End))
	}
	switch evt.Stage {
	case progress.StageChunkRendered:
		fields = append(fields, zap.Int("pages", evt.Pages), zap.Duration("dur", evt.Dur))
		s.logger.Info("chunk rendered", fields...)
	case progress.StageBoundary:
		fields = append(fields,
			zap.String("signal", evt.Signal),
			zap.Int("stop_at", evt.Boundary),
			zap.Bool("accepted", evt.Accepted),
		)
		s.logger.Info("boundary proposed", fields...)
	case progress.StageRunDone:
		fields = append(fields, zap.Int("pages", evt.Pages), zap.Duration("dur", evt.Dur))
		s.logger.Info("run finished", fields...)
	case progress.StageRunError:
		fields = append(fields, zap.String("note", evt.Note), zap.Duration("dur", evt.Dur))
		s.logger.Error("run failed", fields...)
	case progress.StageWorkerDone:
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		s.logger.Debug("worker finished", fields...)
	default:
		s.logger.Debug("progress event", fields...)
	}
}
