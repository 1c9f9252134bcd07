package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IuryyCosta/test-servimed/internal/domain"
)

// TaskStore persists task records. Implementations must make every method
// atomic with respect to concurrent readers: a Get never observes a record
// whose result or error disagrees with its status.
type TaskStore interface {
	// Create stores a new Pending record.
	// Returns ErrTaskExists if the ID is already used.
	Create(ctx context.Context, rec *domain.TaskRecord) error

	// Get returns a copy of the record.
	// Returns ErrTaskNotFound if the ID is unknown.
	Get(ctx context.Context, id string) (*domain.TaskRecord, error)

	// Claim atomically moves a Pending record to Processing and returns it.
	// Returns ErrTaskNotClaimable if the record is in any other state.
	Claim(ctx context.Context, id string) (*domain.TaskRecord, error)

	// Checkpoint updates progress and message of a Processing record.
	// Progress may not decrease and must stay below 1.
	Checkpoint(ctx context.Context, id string, progress float64, message string) error

	// Complete moves a Processing record to Completed with the given result.
	Complete(ctx context.Context, id string, result json.RawMessage) error

	// Fail moves a Pending or Processing record to Failed with the given error.
	Fail(ctx context.Context, id string, errMsg string) error

	// ListByStatus returns records in the given status whose last update is
	// older than olderThan. A zero olderThan returns all of them.
	ListByStatus(ctx context.Context, status domain.TaskStatus, olderThan time.Duration) ([]*domain.TaskRecord, error)
}
