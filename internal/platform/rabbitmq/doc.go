// Package rabbitmq provides a durable task.Queue backed by RabbitMQ.
//
// Jobs are published as persistent JSON messages and consumed with manual
// acknowledgement: a delivery is acked only after a worker has finished the
// job, so jobs held by a crashed process are redelivered. Messages that cannot
// be decoded are dead-lettered instead of requeued.
package rabbitmq
