package audit

import (
	"context"
	"errors"
	"time"

	"sentrix-hq/charon/pkg/pipeline"
)

// ErrNotFound is returned when no record exists for a request ID.
var ErrNotFound = errors.New("audit record not found")

// Record is one persisted pipeline outcome.
type Record struct {
	// RequestID is the correlation token.
	RequestID string `json:"request_id"`

	// RecordedAt is when the record was stored.
	RecordedAt time.Time `json:"recorded_at"`

	// Outcome is the full pipeline outcome.
	Outcome *pipeline.Outcome `json:"outcome"`
}

// Store persists and queries audit records. Implementations must be safe
// for concurrent use.
type Store interface {
	// Record persists one outcome. Implements pipeline.Recorder.
	Record(ctx context.Context, outcome *pipeline.Outcome) error

	// Get returns the record for a request ID, or ErrNotFound.
	Get(ctx context.Context, requestID string) (*Record, error)

	// List returns the most recent records, newest first, up to limit.
	List(ctx context.Context, limit int) ([]*Record, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int64, error)

	// PruneBefore deletes records recorded before cutoff and returns how
	// many were removed.
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// PruneToCount deletes the oldest records until at most max remain and
	// returns how many were removed.
	PruneToCount(ctx context.Context, max int64) (int64, error)

	// Close releases backend resources.
	Close() error
}
