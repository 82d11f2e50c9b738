package app

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ReadinessWaiter blocks until the print source answers.
type ReadinessWaiter interface {
	Wait(ctx context.Context, baseURL string) error
}

// Preparer is implemented by renderers that load the target before the
// first print call.
type Preparer interface {
	Prepare(ctx context.Context) error
}

// Publisher sends run notices.
type Publisher interface {
	Publish(ctx context.Context, kind string, payload any) (string, error)
	Close() error
}

// IDGenerator creates run IDs.
type IDGenerator interface {
	NewRunID() (uuid.UUID, error)
}

// Hasher digests the merged document.
type Hasher interface {
	Hash(data []byte) string
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}
