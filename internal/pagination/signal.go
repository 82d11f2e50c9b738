package pagination

// Signal is the outcome of one chunk attempt as far as end-of-document
// discovery is concerned.
type Signal int

// Termination signals. Every signal other than SignalContinue ends the worker
// that observed it and proposes a boundary.
const (
	SignalContinue Signal = iota
	SignalRangeExceeded
	SignalEmptyChunk
	SignalPartialChunk
)

func (s Signal) String() string {
	switch s {
	case SignalContinue:
		return "continue"
	case SignalRangeExceeded:
		return "range_exceeded"
	case SignalEmptyChunk:
		return "empty_chunk"
	case SignalPartialChunk:
		return "partial_chunk"
	default:
		return "unknown"
	}
}

// Terminal reports whether the signal ends the worker.
func (s Signal) Terminal() bool {
	return s != SignalContinue
}

// Classify interprets the page count of a rendered chunk. A range the renderer
// refused outright is SignalRangeExceeded and never reaches Classify.
func Classify(r Range, pages int) Signal {
	switch {
	case pages <= 0:
		return SignalEmptyChunk
	case pages < r.Len():
		return SignalPartialChunk
	default:
		return SignalContinue
	}
}

// BoundaryFor returns the stop page implied by a terminal signal.
func BoundaryFor(s Signal, r Range, pages int) int {
	if s == SignalPartialChunk {
		return r.Start + pages - 1
	}
	return r.Start - 1
}
