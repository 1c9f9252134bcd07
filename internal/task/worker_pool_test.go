package task

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// handlerFunc adapts a function to JobHandler.
type handlerFunc func(ctx context.Context, job Job) error

func (f handlerFunc) Execute(ctx context.Context, job Job) error {
	return f(ctx, job)
}

func TestNewWorkerPool(t *testing.T) {
	t.Parallel()

	jobs := make(chan Job)
	handler := handlerFunc(func(context.Context, Job) error { return nil })

	pool := NewWorkerPool(jobs, handler, WorkerPoolConfig{WorkerCount: 5}, testLogger())
	assert.Equal(t, 5, pool.workerCount)
	assert.NotNil(t, pool.ctx)
	assert.NotNil(t, pool.cancel)

	pool = NewWorkerPool(jobs, handler, WorkerPoolConfig{WorkerCount: 0}, testLogger())
	assert.Equal(t, 1, pool.workerCount)

	pool = NewWorkerPool(jobs, handler, WorkerPoolConfig{WorkerCount: -5}, testLogger())
	assert.Equal(t, 1, pool.workerCount)

	assert.Equal(t, 4, DefaultWorkerPoolConfig().WorkerCount)
}

func TestWorkerPool_ProcessesJobs(t *testing.T) {
	t.Parallel()

	jobs := make(chan Job, 10)
	var mu sync.Mutex
	seen := map[string]bool{}
	done := make(chan struct{}, 10)

	handler := handlerFunc(func(_ context.Context, job Job) error {
		mu.Lock()
		seen[job.TaskID] = true
		mu.Unlock()
		done <- struct{}{}
		return nil
	})

	pool := NewWorkerPool(jobs, handler, WorkerPoolConfig{WorkerCount: 3}, testLogger())
	pool.Start()
	defer pool.Stop()

	for _, id := range []string{"a", "b", "c", "d"} {
		jobs <- scrapingJob(id)
	}

	for i := 0; i < 4; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for jobs")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, seen, 4)
}

func TestWorkerPool_AcksAfterHandling(t *testing.T) {
	t.Parallel()

	jobs := make(chan Job, 2)
	acked := make(chan string, 2)
	handler := handlerFunc(func(context.Context, Job) error {
		return errors.New("claim failed")
	})

	pool := NewWorkerPool(jobs, handler, WorkerPoolConfig{WorkerCount: 1}, testLogger())
	pool.Start()
	defer pool.Stop()

	job := scrapingJob("a")
	job.Ack = func() error {
		acked <- job.TaskID
		return nil
	}
	jobs <- job

	select {
	case id := <-acked:
		assert.Equal(t, "a", id)
	case <-time.After(2 * time.Second):
		t.Fatal("job was not acknowledged")
	}
}

func TestWorkerPool_BoundedConcurrency(t *testing.T) {
	t.Parallel()

	jobs := make(chan Job, 10)
	var running, peak int32
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(6)

	handler := handlerFunc(func(context.Context, Job) error {
		defer wg.Done()
		n := atomic.AddInt32(&running, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
				break
			}
		}
		<-release
		atomic.AddInt32(&running, -1)
		return nil
	})

	pool := NewWorkerPool(jobs, handler, WorkerPoolConfig{WorkerCount: 2}, testLogger())
	pool.Start()

	for i := 0; i < 6; i++ {
		jobs <- scrapingJob("x")
	}

	require.Eventually(t, func() bool { return atomic.LoadInt32(&running) == 2 },
		2*time.Second, 5*time.Millisecond)
	close(release)
	wg.Wait()
	pool.Stop()

	assert.Equal(t, int32(2), atomic.LoadInt32(&peak))
}

func TestWorkerPool_StopCancelsInFlight(t *testing.T) {
	t.Parallel()

	jobs := make(chan Job, 1)
	started := make(chan struct{})
	cancelled := make(chan struct{})

	handler := handlerFunc(func(ctx context.Context, _ Job) error {
		close(started)
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	})

	pool := NewWorkerPool(jobs, handler, WorkerPoolConfig{WorkerCount: 1}, testLogger())
	pool.Start()
	jobs <- scrapingJob("a")
	<-started

	pool.Stop()

	select {
	case <-cancelled:
	default:
		t.Fatal("in-flight job was not cancelled")
	}
}

func TestWorkerPool_StopsWhenChannelClosed(t *testing.T) {
	t.Parallel()

	jobs := make(chan Job)
	pool := NewWorkerPool(jobs, handlerFunc(func(context.Context, Job) error { return nil }),
		WorkerPoolConfig{WorkerCount: 2}, testLogger())
	pool.Start()
	close(jobs)

	done := make(chan struct{})
	go func() {
		pool.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("workers did not exit after channel close")
	}
	pool.Stop()
}
