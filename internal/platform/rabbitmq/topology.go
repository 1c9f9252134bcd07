package rabbitmq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Topology names the exchanges and queues used for task jobs.
type Topology struct {
	Exchange   string
	Queue      string
	DeadLetter string
}

// NewTopology derives the topology from a base queue name: jobs are routed
// through "<name>.exchange" and rejected messages end up in "<name>.dead".
func NewTopology(name string) Topology {
	return Topology{
		Exchange:   name + ".exchange",
		Queue:      name,
		DeadLetter: name + ".dead",
	}
}

// routingKey is the key jobs are published and bound with.
const routingKey = "job"

// Declare creates the exchanges, queues and bindings. It is idempotent.
func (t Topology) Declare(ch *amqp.Channel) error {
	for _, exchange := range []string{t.Exchange, t.DeadLetter} {
		if err := ch.ExchangeDeclare(
			exchange, // name
			"direct", // type
			true,     // durable
			false,    // auto-deleted
			false,    // internal
			false,    // no-wait
			nil,
		); err != nil {
			return fmt.Errorf("declare exchange %s: %w", exchange, err)
		}
	}

	queues := []struct {
		name     string
		exchange string
		args     amqp.Table
	}{
		{t.Queue, t.Exchange, amqp.Table{
			"x-dead-letter-exchange":    t.DeadLetter,
			"x-dead-letter-routing-key": routingKey,
		}},
		{t.DeadLetter, t.DeadLetter, nil},
	}

	for _, q := range queues {
		if _, err := ch.QueueDeclare(
			q.name, // name
			true,   // durable
			false,  // delete when unused
			false,  // exclusive
			false,  // no-wait
			q.args,
		); err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
		if err := ch.QueueBind(q.name, routingKey, q.exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", q.name, q.exchange, err)
		}
	}

	return nil
}
