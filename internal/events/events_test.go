package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/IuryyCosta/test-servimed/internal/domain"
)

func TestNewTaskEvent(t *testing.T) {
	t.Parallel()

	event := NewTaskEvent(EventTaskCheckpoint, "task-1", domain.TaskKindOrder)

	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, EventTaskCheckpoint, event.Type)
	assert.Equal(t, "task-1", event.TaskID)
	assert.Equal(t, domain.TaskKindOrder, event.TaskKind)
	assert.WithinDuration(t, time.Now(), event.CreatedAt, 2*time.Second)

	other := NewTaskEvent(EventTaskCheckpoint, "task-1", domain.TaskKindOrder)
	assert.NotEqual(t, event.ID, other.ID)
}

func TestEventHandlerFunc(t *testing.T) {
	t.Parallel()

	var got *TaskEvent
	h := EventHandlerFunc(func(ctx context.Context, event *TaskEvent) error {
		got = event
		return errors.New("nope")
	})

	event := NewTaskEvent(EventTaskFailed, "t", domain.TaskKindScraping)
	err := h.HandleEvent(context.Background(), event)

	assert.EqualError(t, err, "nope")
	assert.Same(t, event, got)
}

func TestNopEmitter(t *testing.T) {
	t.Parallel()

	var emitter EventEmitter = NopEmitter{}
	assert.NoError(t, emitter.EmitEvent(context.Background(), NewTaskEvent(EventTaskStarted, "t", domain.TaskKindScraping)))
}

// MockEventHandler implements the EventHandler interface for testing
type MockEventHandler struct {
	// The last event received by this handler
	LastEvent *TaskEvent
	// Error to return from HandleEvent
	HandlerError error
	// Number of events handled
	HandledCount int
}

// HandleEvent records the event and returns the configured error
func (m *MockEventHandler) HandleEvent(ctx context.Context, event *TaskEvent) error {
	m.LastEvent = event
	m.HandledCount++
	return m.HandlerError
}
