package task

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IuryyCosta/test-servimed/internal/domain"
	"github.com/IuryyCosta/test-servimed/internal/events"
	"github.com/IuryyCosta/test-servimed/internal/store"
)

// pipelineFunc adapts a function to Pipeline.
type pipelineFunc func(ctx context.Context, job Job, reporter ProgressReporter) (any, error)

func (f pipelineFunc) Run(ctx context.Context, job Job, reporter ProgressReporter) (any, error) {
	return f(ctx, job, reporter)
}

// progressStore records every checkpoint written through it.
type progressStore struct {
	store.TaskStore
	mu       sync.Mutex
	progress []float64
}

func (s *progressStore) Checkpoint(ctx context.Context, id string, progress float64, message string) error {
	if err := s.TaskStore.Checkpoint(ctx, id, progress, message); err != nil {
		return err
	}
	s.mu.Lock()
	s.progress = append(s.progress, progress)
	s.mu.Unlock()
	return nil
}

func createPending(t *testing.T, s store.TaskStore, id string, kind domain.TaskKind) {
	t.Helper()
	rec, err := domain.NewTaskRecord(id, kind, time.Now())
	require.NoError(t, err)
	require.NoError(t, s.Create(context.Background(), rec))
}

func newScrapingExecutor(
	s store.TaskStore,
	emitter events.EventEmitter,
	verifier *fakeVerifier,
	extractor *fakeExtractor,
	callbacks *fakeCallbacks,
	config ExecutorConfig,
) *Executor {
	pipelines := map[domain.TaskKind]Pipeline{
		domain.TaskKindScraping: NewScrapingPipeline(verifier, extractor, callbacks, ScrapingPipelineConfig{}),
	}
	return NewExecutor(s, emitter, pipelines, config, testLogger())
}

func TestExecutor_CompletesScrapingTask(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := &progressStore{TaskStore: store.NewMemoryTaskStore()}
	emitter := &recordingEmitter{}
	createPending(t, s, "t1", domain.TaskKindScraping)

	exec := newScrapingExecutor(s, emitter, &fakeVerifier{cred: testCredential()},
		&fakeExtractor{products: twoProducts()}, newFakeCallbacks(domain.CallbackStatusSuccess),
		ExecutorConfig{})

	require.NoError(t, exec.Execute(ctx, scrapingJob("t1")))

	rec, err := s.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, rec.Status)
	assert.Equal(t, 1.0, rec.Progress)
	assert.Nil(t, rec.Error)
	require.NotNil(t, rec.Result)
	require.NotNil(t, rec.StartedAt)
	require.NotNil(t, rec.CompletedAt)

	var result domain.ScrapingResult
	require.NoError(t, json.Unmarshal(rec.Result, &result))
	assert.Equal(t, 2, result.TotalProducts)
	assert.True(t, result.CallbackSent)

	assert.Equal(t, []float64{0.3, 0.7}, s.progress)
	assert.Equal(t, []events.EventType{
		events.EventTaskStarted,
		events.EventTaskCheckpoint,
		events.EventTaskCheckpoint,
		events.EventCallbackSent,
		events.EventTaskCompleted,
	}, emitter.types())
}

func TestExecutor_FailsOnAuthentication(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := store.NewMemoryTaskStore()
	emitter := &recordingEmitter{}
	createPending(t, s, "t1", domain.TaskKindScraping)

	exec := newScrapingExecutor(s, emitter, &fakeVerifier{err: errors.New("invalid credentials")},
		&fakeExtractor{products: twoProducts()}, newFakeCallbacks(domain.CallbackStatusSuccess),
		ExecutorConfig{})

	require.NoError(t, exec.Execute(ctx, scrapingJob("t1")))

	rec, err := s.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, rec.Status)
	require.NotNil(t, rec.Error)
	assert.Contains(t, *rec.Error, "authentication failed")
	assert.Nil(t, rec.Result)
	assert.Less(t, rec.Progress, 1.0)
	assert.Equal(t, []events.EventType{events.EventTaskStarted, events.EventTaskFailed}, emitter.types())
}

func TestExecutor_CallbackFailureStillCompletes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := store.NewMemoryTaskStore()
	createPending(t, s, "t1", domain.TaskKindScraping)

	exec := newScrapingExecutor(s, nil, &fakeVerifier{cred: testCredential()},
		&fakeExtractor{products: twoProducts()}, newFakeCallbacks(domain.CallbackStatusWarning),
		ExecutorConfig{})

	require.NoError(t, exec.Execute(ctx, scrapingJob("t1")))

	rec, err := s.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, rec.Status)

	var result domain.ScrapingResult
	require.NoError(t, json.Unmarshal(rec.Result, &result))
	assert.False(t, result.CallbackSent)
}

func TestExecutor_RecoversPanic(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := store.NewMemoryTaskStore()
	createPending(t, s, "t1", domain.TaskKindScraping)

	exec := NewExecutor(s, nil, map[domain.TaskKind]Pipeline{
		domain.TaskKindScraping: pipelineFunc(func(context.Context, Job, ProgressReporter) (any, error) {
			panic("boom")
		}),
	}, ExecutorConfig{}, testLogger())

	require.NoError(t, exec.Execute(ctx, scrapingJob("t1")))

	rec, err := s.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, rec.Status)
	require.NotNil(t, rec.Error)
	assert.Contains(t, *rec.Error, "internal error")
	assert.Contains(t, *rec.Error, "boom")
}

func TestExecutor_TimesOut(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := store.NewMemoryTaskStore()
	createPending(t, s, "t1", domain.TaskKindScraping)

	exec := newScrapingExecutor(s, nil, &fakeVerifier{cred: testCredential()},
		&fakeExtractor{block: make(chan struct{})}, newFakeCallbacks(domain.CallbackStatusSuccess),
		ExecutorConfig{TaskTimeout: 20 * time.Millisecond})

	require.NoError(t, exec.Execute(ctx, scrapingJob("t1")))

	rec, err := s.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, rec.Status)
	require.NotNil(t, rec.Error)
	assert.Contains(t, *rec.Error, "timed out")
	assert.Equal(t, 0.3, rec.Progress, "progress keeps its last checkpoint")
}

func TestExecutor_UnencodableResult(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := store.NewMemoryTaskStore()
	createPending(t, s, "t1", domain.TaskKindScraping)

	exec := NewExecutor(s, nil, map[domain.TaskKind]Pipeline{
		domain.TaskKindScraping: pipelineFunc(func(context.Context, Job, ProgressReporter) (any, error) {
			return make(chan int), nil
		}),
	}, ExecutorConfig{}, testLogger())

	require.NoError(t, exec.Execute(ctx, scrapingJob("t1")))

	rec, err := s.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, rec.Status)
	assert.Contains(t, *rec.Error, "failed to encode result")
}

func TestExecutor_MissingPipeline(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := store.NewMemoryTaskStore()
	createPending(t, s, "t1", domain.TaskKindOrder)

	exec := NewExecutor(s, nil, map[domain.TaskKind]Pipeline{}, ExecutorConfig{}, testLogger())
	require.NoError(t, exec.Execute(ctx, orderJob("t1")))

	rec, err := s.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, rec.Status)
	assert.Contains(t, *rec.Error, "no pipeline")
}

func TestExecutor_DropsUnclaimableJobs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := store.NewMemoryTaskStore()
	createPending(t, s, "t1", domain.TaskKindScraping)
	require.NoError(t, s.Fail(ctx, "t1", "already failed"))

	verifier := &fakeVerifier{cred: testCredential()}
	exec := newScrapingExecutor(s, nil, verifier, &fakeExtractor{products: twoProducts()},
		newFakeCallbacks(domain.CallbackStatusSuccess), ExecutorConfig{})

	err := exec.Execute(ctx, scrapingJob("t1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrJobDropped)
	assert.ErrorIs(t, err, store.ErrTaskNotClaimable)
	assert.Equal(t, 0, verifier.calls)

	err = exec.Execute(ctx, scrapingJob("missing"))
	assert.ErrorIs(t, err, ErrJobDropped)
	assert.ErrorIs(t, err, store.ErrTaskNotFound)

	rec, err := s.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "already failed", *rec.Error)
}

func TestExecutor_RejectsInvalidJob(t *testing.T) {
	t.Parallel()

	s := store.NewMemoryTaskStore()
	createPending(t, s, "t1", domain.TaskKindScraping)
	exec := NewExecutor(s, nil, map[domain.TaskKind]Pipeline{}, ExecutorConfig{}, testLogger())

	job := scrapingJob("t1")
	job.Order = orderJob("t1").Order

	err := exec.Execute(context.Background(), job)
	assert.ErrorIs(t, err, ErrJobDropped)
	assert.ErrorIs(t, err, ErrInvalidJob)

	rec, err := s.Get(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusPending, rec.Status)
}

func TestExecutor_RedactsFailureMessage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := store.NewMemoryTaskStore()
	createPending(t, s, "t1", domain.TaskKindScraping)

	exec := NewExecutor(s, nil, map[domain.TaskKind]Pipeline{
		domain.TaskKindScraping: pipelineFunc(func(context.Context, Job, ProgressReporter) (any, error) {
			return nil, errors.New("dial postgres://admin:hunter2@db:5432/tasks failed")
		}),
	}, ExecutorConfig{}, testLogger())

	require.NoError(t, exec.Execute(ctx, scrapingJob("t1")))

	rec, err := s.Get(ctx, "t1")
	require.NoError(t, err)
	assert.NotContains(t, *rec.Error, "hunter2")
}

func TestJob_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		job     Job
		wantErr bool
	}{
		{name: "scraping", job: scrapingJob("a")},
		{name: "order", job: orderJob("a")},
		{name: "empty id", job: Job{Kind: domain.TaskKindScraping, Scraping: &domain.ScrapingRequest{}}, wantErr: true},
		{name: "unknown kind", job: Job{TaskID: "a", Kind: "batch"}, wantErr: true},
		{name: "scraping without payload", job: Job{TaskID: "a", Kind: domain.TaskKindScraping}, wantErr: true},
		{name: "order with scraping payload", job: Job{
			TaskID:   "a",
			Kind:     domain.TaskKindOrder,
			Scraping: &domain.ScrapingRequest{},
			Order:    &domain.OrderRequest{},
		}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.job.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidJob)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
