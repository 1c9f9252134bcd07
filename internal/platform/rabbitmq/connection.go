package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrNoChannel is returned while the connection is down.
var ErrNoChannel = errors.New("no amqp channel available")

const maxReconnectDelay = 30 * time.Second

// Connection wraps an AMQP connection and its channel, reconnecting with
// exponential backoff when the broker drops it.
type Connection struct {
	url    string
	logger *slog.Logger

	mu      sync.RWMutex
	conn    *amqp.Connection
	channel *amqp.Channel

	closed   bool
	closedCh chan struct{}

	reconnectCh chan struct{}
}

// Dial connects to the broker and starts watching the connection.
func Dial(url string, logger *slog.Logger) (*Connection, error) {
	c := &Connection{
		url:         url,
		logger:      logger.With("component", "rabbitmq"),
		closedCh:    make(chan struct{}),
		reconnectCh: make(chan struct{}, 1),
	}

	if err := c.connect(); err != nil {
		return nil, err
	}

	go c.watch()

	return c, nil
}

func (c *Connection) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	c.conn = conn
	c.channel = ch
	c.logger.Info("connected to RabbitMQ")
	return nil
}

func (c *Connection) watch() {
	for {
		c.mu.RLock()
		if c.closed {
			c.mu.RUnlock()
			return
		}
		conn := c.conn
		c.mu.RUnlock()

		notifyClose := conn.NotifyClose(make(chan *amqp.Error, 1))

		select {
		case <-c.closedCh:
			return
		case err := <-notifyClose:
			if err != nil {
				c.logger.Warn("connection lost", "error", err)
			}
			c.reconnect()
		}
	}
}

func (c *Connection) reconnect() {
	delay := time.Second

	for {
		select {
		case <-c.closedCh:
			return
		case <-time.After(delay):
		}

		if err := c.connect(); err != nil {
			c.logger.Warn("reconnect failed", "error", err, "retry_in", delay)
			delay = min(delay*2, maxReconnectDelay)
			continue
		}

		c.logger.Info("reconnected to RabbitMQ")
		select {
		case c.reconnectCh <- struct{}{}:
		default:
		}
		return
	}
}

// ReconnectNotify signals each successful reconnect.
func (c *Connection) ReconnectNotify() <-chan struct{} {
	return c.reconnectCh
}

// Done is closed once Close has been called.
func (c *Connection) Done() <-chan struct{} {
	return c.closedCh
}

// WithChannel runs fn with the current channel.
func (c *Connection) WithChannel(fn func(ch *amqp.Channel) error) error {
	c.mu.RLock()
	ch := c.channel
	c.mu.RUnlock()

	if ch == nil || ch.IsClosed() {
		return ErrNoChannel
	}
	return fn(ch)
}

// IsConnected reports whether the underlying connection is open.
func (c *Connection) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && !c.conn.IsClosed()
}

// Close shuts the channel and the connection down. Unacked deliveries are
// returned to the queue by the broker.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.closedCh)

	var errs []error
	if c.channel != nil && !c.channel.IsClosed() {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close channel: %w", err))
		}
	}
	if c.conn != nil && !c.conn.IsClosed() {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
	}

	c.logger.Info("connection closed")
	return errors.Join(errs...)
}

// Ping checks that a channel is available.
func (c *Connection) Ping(_ context.Context) error {
	return c.WithChannel(func(*amqp.Channel) error { return nil })
}
