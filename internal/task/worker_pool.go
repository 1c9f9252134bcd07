package task

import (
	"context"
	"log/slog"
	"sync"
)

// WorkerPool manages a pool of worker goroutines that consume jobs from a
// channel and hand them to a JobHandler. It handles graceful shutdown and
// worker lifecycle.
type WorkerPool struct {
	// jobs is the channel workers consume from
	jobs <-chan Job

	// handler runs each job
	handler JobHandler

	// workerCount is the number of concurrent workers to start
	workerCount int

	// wg tracks active worker goroutines for clean shutdown
	wg sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	logger *slog.Logger
}

// WorkerPoolConfig holds configuration options for the worker pool
type WorkerPoolConfig struct {
	// WorkerCount determines how many concurrent worker goroutines to start
	// If zero or negative, defaults to 1
	WorkerCount int
}

// DefaultWorkerPoolConfig returns a WorkerPoolConfig with reasonable defaults
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		WorkerCount: 4,
	}
}

// NewWorkerPool creates a new worker pool with the specified configuration
func NewWorkerPool(jobs <-chan Job, handler JobHandler, config WorkerPoolConfig, logger *slog.Logger) *WorkerPool {
	workerCount := config.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", 1)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		jobs:        jobs,
		handler:     handler,
		workerCount: workerCount,
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger,
	}
}

// Start launches the worker goroutines.
func (p *WorkerPool) Start() {
	p.logger.Info("starting worker pool", "worker_count", p.workerCount)
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop cancels in-flight jobs and waits for every worker to return.
func (p *WorkerPool) Stop() {
	p.cancel()
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	p.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-p.ctx.Done():
			p.logger.Debug("stopping worker", "worker_id", id)
			return

		case job, ok := <-p.jobs:
			if !ok {
				p.logger.Debug("job channel closed, stopping worker", "worker_id", id)
				return
			}
			p.processJob(job, id)
		}
	}
}

func (p *WorkerPool) processJob(job Job, workerID int) {
	logger := p.logger.With(
		"task_id", job.TaskID,
		"task_kind", job.Kind,
		"worker_id", workerID,
	)

	if err := p.handler.Execute(p.ctx, job); err != nil {
		logger.Warn("job not executed", "error", err)
	}

	if job.Ack != nil {
		if err := job.Ack(); err != nil {
			logger.Error("failed to acknowledge job", "error", err)
		}
	}
}
