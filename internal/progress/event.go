package progress

import (
	"fmt"
	"time"
)

// Stage denotes the milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart      Stage = "RUN_START"
	StageWorkerStart   Stage = "WORKER_START"
	StageChunkRendered Stage = "CHUNK_RENDERED"
	StageBoundary      Stage = "BOUNDARY"
	StageWorkerDone    Stage = "WORKER_DONE"
	StageRunDone       Stage = "RUN_DONE"
	StageRunError      Stage = "RUN_ERROR"
)

// Event captures a single step of a pagination run.
type Event struct {
	// RunID correlates events of one run; set by the emitter wrapper.
	RunID string
	// TS is the UTC timestamp recorded by the emitter.
	TS    time.Time
	Stage Stage
	// Worker is the 1-based worker index, 0 for run-level events.
	Worker int
	Start  int
	End    int
	// Pages is the page count of a rendered chunk, or the run total for RUN_DONE.
	Pages int
	// Signal names the termination signal for BOUNDARY events.
	Signal string
	// Accepted is true when a BOUNDARY proposal became the run's boundary.
	Accepted bool
	// Boundary is the proposed stop page for BOUNDARY events.
	Boundary int
	Dur      time.Duration
	// Note carries low-volume context such as error text.
	Note string
}

// Validate reports malformed events.
func (e Event) Validate() error {
	switch e.Stage {
	case StageRunStart, StageWorkerStart, StageChunkRendered, StageBoundary,
		StageWorkerDone, StageRunDone, StageRunError:
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Stage == StageChunkRendered && (e.Start < 1 || e.End < e.Start) {
		return fmt.Errorf("chunk event has invalid range %d-%d", e.Start, e.End)
	}
	return nil
}
