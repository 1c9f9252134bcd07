package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/IuryyCosta/test-servimed/internal/task"
)

// QueueConfig configures a Queue.
type QueueConfig struct {
	// Name is the base name of the job queue.
	Name string

	// Prefetch bounds the unacked deliveries held by this process. It should
	// match the worker count.
	Prefetch int
}

// Queue implements task.Queue on top of a RabbitMQ queue.
type Queue struct {
	conn     *Connection
	topology Topology
	prefetch int
	logger   *slog.Logger

	jobs   chan task.Job
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

var _ task.Queue = (*Queue)(nil)

func newQueue(conn *Connection, cfg QueueConfig, logger *slog.Logger) *Queue {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		conn:     conn,
		topology: NewTopology(cfg.Name),
		prefetch: prefetch,
		logger:   logger.With("component", "rabbitmq_queue", "queue", cfg.Name),
		jobs:     make(chan task.Job),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// NewQueue declares the topology and starts consuming. The queue owns conn
// and closes it on Close.
func NewQueue(conn *Connection, cfg QueueConfig, logger *slog.Logger) (*Queue, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("queue name is required")
	}

	q := newQueue(conn, cfg, logger)
	if err := conn.WithChannel(q.topology.Declare); err != nil {
		q.cancel()
		return nil, fmt.Errorf("declare topology: %w", err)
	}

	go q.consume()
	return q, nil
}

// Enqueue publishes the job as a persistent message.
func (q *Queue) Enqueue(ctx context.Context, job task.Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return task.ErrQueueClosed
	}

	publishing, err := encodeJob(job)
	if err != nil {
		return err
	}

	err = q.conn.WithChannel(func(ch *amqp.Channel) error {
		return ch.PublishWithContext(ctx,
			q.topology.Exchange, // exchange
			routingKey,          // routing key
			false,               // mandatory
			false,               // immediate
			publishing,
		)
	})
	if err != nil {
		return fmt.Errorf("publish job %s: %w", job.TaskID, err)
	}

	q.logger.DebugContext(ctx, "job published",
		"task_id", job.TaskID,
		"task_kind", job.Kind)
	return nil
}

// Jobs returns the channel deliveries are handed to workers on.
func (q *Queue) Jobs() <-chan task.Job {
	return q.jobs
}

// Close stops consuming, closes the jobs channel and the connection. Jobs
// that were delivered but not yet acked are redelivered by the broker.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()

	q.cancel()
	<-q.done
	close(q.jobs)

	return q.conn.Close()
}

// consume keeps a consumer running across reconnects until the queue closes.
func (q *Queue) consume() {
	defer close(q.done)

	for {
		deliveries, err := q.setupConsume()
		if err != nil {
			q.logger.Error("failed to start consumer", "error", err)
		} else {
			q.logger.Info("consumer started", "prefetch", q.prefetch)
			if q.processDeliveries(deliveries) {
				return
			}
			q.logger.Warn("deliveries channel closed, waiting for reconnect")
		}

		select {
		case <-q.ctx.Done():
			return
		case <-q.conn.ReconnectNotify():
		}
	}
}

func (q *Queue) setupConsume() (<-chan amqp.Delivery, error) {
	var deliveries <-chan amqp.Delivery
	err := q.conn.WithChannel(func(ch *amqp.Channel) error {
		if err := q.topology.Declare(ch); err != nil {
			return err
		}
		if err := ch.Qos(q.prefetch, 0, false); err != nil {
			return fmt.Errorf("set qos: %w", err)
		}
		var err error
		deliveries, err = ch.Consume(
			q.topology.Queue, // queue
			"",               // consumer tag
			false,            // auto-ack
			false,            // exclusive
			false,            // no-local
			false,            // no-wait
			nil,
		)
		if err != nil {
			return fmt.Errorf("consume: %w", err)
		}
		return nil
	})
	return deliveries, err
}

// processDeliveries returns true when the queue was closed and false when the
// deliveries channel was.
func (q *Queue) processDeliveries(deliveries <-chan amqp.Delivery) bool {
	for {
		select {
		case <-q.ctx.Done():
			return true
		case raw, ok := <-deliveries:
			if !ok {
				return false
			}
			q.handleDelivery(raw)
		}
	}
}

// handleDelivery decodes one delivery and hands it to a worker. The worker
// acks it through Job.Ack once the job is done.
func (q *Queue) handleDelivery(raw amqp.Delivery) {
	job, err := decodeJob(raw.Body)
	if err != nil {
		q.logger.Error("dropping undecodable delivery",
			"message_id", raw.MessageId,
			"error", err)
		if err := raw.Nack(false, false); err != nil {
			q.logger.Warn("failed to dead-letter delivery", "message_id", raw.MessageId, "error", err)
		}
		return
	}

	job.Ack = func() error { return raw.Ack(false) }

	select {
	case q.jobs <- job:
		q.logger.Debug("job delivered",
			"task_id", job.TaskID,
			"redelivered", raw.Redelivered)
	case <-q.ctx.Done():
		if err := raw.Nack(false, true); err != nil {
			q.logger.Warn("failed to requeue delivery", "task_id", job.TaskID, "error", err)
		}
	}
}

func encodeJob(job task.Job) (amqp.Publishing, error) {
	if err := job.Validate(); err != nil {
		return amqp.Publishing{}, err
	}
	body, err := json.Marshal(job)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal job: %w", err)
	}

	ts := job.EnqueuedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.TaskID,
		Type:         string(job.Kind),
		Timestamp:    ts,
		Body:         body,
	}, nil
}

func decodeJob(body []byte) (task.Job, error) {
	var job task.Job
	if err := json.Unmarshal(body, &job); err != nil {
		return task.Job{}, fmt.Errorf("unmarshal job: %w", err)
	}
	if err := job.Validate(); err != nil {
		return task.Job{}, err
	}
	return job, nil
}
