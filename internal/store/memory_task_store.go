package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/IuryyCosta/test-servimed/internal/domain"
)

// MemoryTaskStore keeps task records in process memory. Records are never
// evicted for the lifetime of the process.
type MemoryTaskStore struct {
	mu      sync.RWMutex
	records map[string]*domain.TaskRecord
	now     func() time.Time
}

// NewMemoryTaskStore creates an empty in-memory store.
func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{
		records: make(map[string]*domain.TaskRecord),
		now:     time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (s *MemoryTaskStore) WithClock(now func() time.Time) *MemoryTaskStore {
	s.now = now
	return s
}

// Create implements TaskStore.
func (s *MemoryTaskStore) Create(ctx context.Context, rec *domain.TaskRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEntity, err)
	}
	if rec.Status != domain.TaskStatusPending {
		return fmt.Errorf("%w: new task must be pending", ErrInvalidEntity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.ID]; exists {
		return ErrTaskExists
	}
	s.records[rec.ID] = rec.Clone()
	return nil
}

// Get implements TaskStore.
func (s *MemoryTaskStore) Get(ctx context.Context, id string) (*domain.TaskRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return rec.Clone(), nil
}

// Claim implements TaskStore.
func (s *MemoryTaskStore) Claim(ctx context.Context, id string) (*domain.TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	if rec.Status != domain.TaskStatusPending {
		return nil, fmt.Errorf("%w: status %s", ErrTaskNotClaimable, rec.Status)
	}

	next := rec.Clone()
	if err := next.MarkProcessing(s.now()); err != nil {
		return nil, NewStoreError("task", "claim", "transition rejected", err)
	}
	s.records[id] = next
	return next.Clone(), nil
}

// Checkpoint implements TaskStore.
func (s *MemoryTaskStore) Checkpoint(ctx context.Context, id string, progress float64, message string) error {
	return s.mutate(id, "checkpoint", func(rec *domain.TaskRecord) error {
		return rec.ApplyCheckpoint(progress, message, s.now())
	})
}

// Complete implements TaskStore.
func (s *MemoryTaskStore) Complete(ctx context.Context, id string, result json.RawMessage) error {
	return s.mutate(id, "complete", func(rec *domain.TaskRecord) error {
		return rec.MarkCompleted(result, s.now())
	})
}

// Fail implements TaskStore.
func (s *MemoryTaskStore) Fail(ctx context.Context, id string, errMsg string) error {
	return s.mutate(id, "fail", func(rec *domain.TaskRecord) error {
		return rec.MarkFailed(errMsg, s.now())
	})
}

// ListByStatus implements TaskStore. Results are ordered by creation time.
func (s *MemoryTaskStore) ListByStatus(
	ctx context.Context,
	status domain.TaskStatus,
	olderThan time.Duration,
) ([]*domain.TaskRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := s.now().Add(-olderThan)
	var out []*domain.TaskRecord
	for _, rec := range s.records {
		if rec.Status != status {
			continue
		}
		if olderThan > 0 && rec.UpdatedAt.After(cutoff) {
			continue
		}
		out = append(out, rec.Clone())
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// mutate applies fn to a copy of the record and swaps it in only on success,
// so a rejected transition leaves the stored record untouched.
func (s *MemoryTaskStore) mutate(id, op string, fn func(rec *domain.TaskRecord) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return ErrTaskNotFound
	}

	next := rec.Clone()
	if err := fn(next); err != nil {
		return NewStoreError("task", op, "transition rejected", fmt.Errorf("%w: %w", ErrUpdateFailed, err))
	}
	s.records[id] = next
	return nil
}
