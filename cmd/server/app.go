package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/IuryyCosta/test-servimed/internal/api"
	"github.com/IuryyCosta/test-servimed/internal/config"
	"github.com/IuryyCosta/test-servimed/internal/domain"
	"github.com/IuryyCosta/test-servimed/internal/events"
	"github.com/IuryyCosta/test-servimed/internal/platform/metrics"
	"github.com/IuryyCosta/test-servimed/internal/platform/postgres"
	"github.com/IuryyCosta/test-servimed/internal/platform/rabbitmq"
	"github.com/IuryyCosta/test-servimed/internal/servimed"
	"github.com/IuryyCosta/test-servimed/internal/store"
	"github.com/IuryyCosta/test-servimed/internal/task"
)

// Backend names accepted in configuration
const (
	backendMemory   = "memory"
	backendPostgres = "postgres"
	backendRabbitMQ = "rabbitmq"
)

// application holds the shared dependencies and owns their shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	db        *sql.DB
	taskStore store.TaskStore
	queue     task.Queue

	eventEmitter *events.InMemoryEventEmitter
	metrics      *metrics.Metrics

	dispatcher *task.Dispatcher
	projector  *task.Projector
	taskRunner *task.TaskRunner

	healthChecks map[string]api.HealthCheck
}

// newApplication wires every component from configuration. Resources opened
// before a failure are released.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *application, err error) {
	app := &application{
		config:       cfg,
		logger:       logger,
		healthChecks: make(map[string]api.HealthCheck),
	}
	defer func() {
		if err != nil {
			app.cleanup()
		}
	}()

	if err := app.setupStore(ctx); err != nil {
		return nil, err
	}
	if err := app.setupQueue(); err != nil {
		return nil, err
	}

	app.metrics = metrics.New()
	app.eventEmitter = events.NewInMemoryEventEmitter(logger)
	app.eventEmitter.RegisterHandler(app.metrics)

	pipelines := app.buildPipelines()
	executor := task.NewExecutor(app.taskStore, app.eventEmitter, pipelines, task.ExecutorConfig{
		TaskTimeout: cfg.Worker.TaskTimeout,
	}, logger)

	app.dispatcher = task.NewDispatcher(app.taskStore, app.queue, app.eventEmitter, logger)
	app.projector = task.NewProjector(app.taskStore)
	app.taskRunner = task.NewTaskRunner(app.taskStore, app.queue, executor, task.TaskRunnerConfig{
		WorkerCount:            cfg.Worker.Count,
		StuckTaskAge:           cfg.Worker.StuckTaskAge,
		StuckTaskCheckInterval: cfg.Worker.StuckCheckInterval,
		// Broker-backed jobs survive a restart and are redelivered.
		FailPendingOnRecover: cfg.Queue.Backend == backendMemory,
	}, logger)

	logger.Info("application initialized")
	return app, nil
}

func (app *application) setupStore(ctx context.Context) error {
	switch app.config.Store.Backend {
	case backendPostgres:
		db, err := setupDatabase(ctx, app.config.Database, app.logger)
		if err != nil {
			return err
		}
		app.db = db
		app.taskStore = postgres.NewPostgresTaskStore(db)
		app.healthChecks["database"] = db.PingContext
	case backendMemory:
		app.taskStore = store.NewMemoryTaskStore()
	default:
		return fmt.Errorf("unknown store backend %q", app.config.Store.Backend)
	}

	app.logger.Info("task store ready", "backend", app.config.Store.Backend)
	return nil
}

func (app *application) setupQueue() error {
	qc := app.config.Queue

	switch qc.Backend {
	case backendRabbitMQ:
		if qc.AMQPURL == "" {
			return errors.New("queue.amqp_url is required for the rabbitmq queue")
		}
		conn, err := rabbitmq.Dial(qc.AMQPURL, app.logger)
		if err != nil {
			return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		q, err := rabbitmq.NewQueue(conn, rabbitmq.QueueConfig{
			Name:     qc.AMQPQueue,
			Prefetch: app.config.Worker.Count,
		}, app.logger)
		if err != nil {
			_ = conn.Close()
			return fmt.Errorf("failed to set up RabbitMQ queue: %w", err)
		}
		app.queue = q
		app.healthChecks["queue"] = conn.Ping
	case backendMemory:
		app.queue = task.NewTaskQueue(qc.Size, app.logger)
	default:
		return fmt.Errorf("unknown queue backend %q", qc.Backend)
	}

	app.logger.Info("task queue ready", "backend", qc.Backend)
	return nil
}

// buildPipelines creates the supplier clients and the pipeline per task kind.
func (app *application) buildPipelines() map[domain.TaskKind]task.Pipeline {
	cfg := app.config
	client := &http.Client{}
	retry := servimed.RetryPolicy{MaxAttempts: cfg.Retry.MaxAttempts, Delay: cfg.Retry.Delay}

	authenticator := servimed.NewAuthenticator(servimed.AuthConfig{
		BaseURL:       cfg.Servimed.BaseURL,
		TokenEndpoint: cfg.Servimed.TokenEndpoint,
		ClientID:      cfg.Servimed.ClientID,
		ClientSecret:  cfg.Servimed.ClientSecret,
		GrantType:     cfg.Servimed.GrantType,
		Scope:         cfg.Servimed.Scope,
		Timeout:       cfg.Servimed.AuthTimeout,
		CacheEnabled:  cfg.Cache.Enabled,
		CacheTTL:      cfg.Cache.TTL,
	}, client, app.logger)

	extractor := servimed.NewExtractor(servimed.ExtractorConfig{
		BaseURL:          cfg.Servimed.BaseURL,
		ProductsEndpoint: cfg.Servimed.ProductsEndpoint,
		Timeout:          cfg.Servimed.ExtractTimeout,
		Retry:            retry,
	}, client, app.logger)

	callbacks := servimed.NewCallbackDispatcher(cfg.Callback.Timeout, client, app.logger)
	fulfiller := servimed.NewFulfiller(authenticator, extractor, cfg.Orders.DefaultUnitPrice, app.logger)
	registry := servimed.NewOrderRegistry(servimed.OrderRegistryConfig{
		BaseURL: cfg.Orders.BaseURL,
		Timeout: cfg.Orders.Timeout,
		Retry:   retry,
	}, client, app.logger)

	return map[domain.TaskKind]task.Pipeline{
		domain.TaskKindScraping: task.NewScrapingPipeline(authenticator, extractor, callbacks, task.ScrapingPipelineConfig{
			FailOnEmpty: cfg.Scraping.FailOnEmpty,
		}),
		domain.TaskKindOrder: task.NewOrderPipeline(fulfiller, registry, callbacks, task.OrderPipelineConfig{
			SupplierCode:            cfg.Orders.SupplierCode,
			FallbackOnCreateFailure: cfg.Orders.FallbackOnCreateFailure,
		}),
	}
}

// Run starts background processing and serves HTTP until ctx is cancelled
// or a shutdown signal arrives.
func (app *application) Run(ctx context.Context) error {
	if err := app.taskRunner.Start(); err != nil {
		app.cleanup()
		return fmt.Errorf("failed to start task runner: %w", err)
	}

	if err := app.startHTTPServer(ctx, app.setupRouter()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup stops the workers before closing the queue and the database, so
// in-flight jobs can still write their terminal state.
func (app *application) cleanup() {
	if app.taskRunner != nil {
		app.taskRunner.Stop()
	}

	if app.queue != nil {
		if err := app.queue.Close(); err != nil {
			app.logger.Error("error closing task queue", "error", err)
		}
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", "error", err)
		}
	}

	app.logger.Info("application shutdown completed")
}
