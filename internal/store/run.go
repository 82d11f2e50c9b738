package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RunStatus mirrors the status column of the run ledger.
type RunStatus string

// Run statuses persisted in the ledger.
const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
	// RunEmpty marks a run that rendered no pages.
	RunEmpty RunStatus = "empty"
)

// RunRecord is one row of the run ledger. Output fields stay zero for failed runs.
type RunRecord struct {
	ID          uuid.UUID
	Target      string
	Status      RunStatus
	StartedAt   time.Time
	FinishedAt  time.Time
	ChunkSize   int
	Concurrency int

	FirstPage  int
	LastPage   int
	TotalPages int
	Chunks     int
	// Boundary is the stop page the cursor accepted.
	Boundary int

	OutputURI   string
	OutputBytes int
	SHA256      string

	ErrorMessage *string
}

// RunLedger persists finished runs.
type RunLedger interface {
	RecordRun(ctx context.Context, rec RunRecord) error
	Close()
}
