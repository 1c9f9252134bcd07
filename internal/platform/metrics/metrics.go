// Package metrics exposes task engine counters and histograms in the
// Prometheus format. Metrics subscribes to task lifecycle events, so the
// engine never references it directly.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/IuryyCosta/test-servimed/internal/events"
)

const namespace = "servimed"

// Metrics holds the collectors fed by task events and HTTP traffic.
type Metrics struct {
	registry *prometheus.Registry

	tasksSubmitted *prometheus.CounterVec
	tasksStarted   *prometheus.CounterVec
	tasksFinished  *prometheus.CounterVec
	tasksInFlight  *prometheus.GaugeVec
	taskDuration   *prometheus.HistogramVec
	checkpoints    *prometheus.CounterVec
	callbacks      *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New creates Metrics on a private registry that also carries the Go runtime
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		tasksSubmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_submitted_total",
			Help:      "Tasks accepted by the dispatcher.",
		}, []string{"kind"}),
		tasksStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_started_total",
			Help:      "Tasks claimed by a worker.",
		}, []string{"kind"}),
		tasksFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_finished_total",
			Help:      "Tasks that reached a terminal state.",
		}, []string{"kind", "status"}),
		tasksInFlight: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tasks_in_flight",
			Help:      "Tasks currently being processed.",
		}, []string{"kind"}),
		taskDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Time from claim to terminal state.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"kind", "status"}),
		checkpoints: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_checkpoints_total",
			Help:      "Pipeline checkpoints reached.",
		}, []string{"kind", "checkpoint"}),
		callbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "callbacks_total",
			Help:      "Callback deliveries by outcome.",
		}, []string{"kind", "outcome"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests handled by the API.",
		}, []string{"code", "method"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"code", "method"}),
	}
}

// HandleEvent implements events.EventHandler.
func (m *Metrics) HandleEvent(_ context.Context, event *events.TaskEvent) error {
	kind := string(event.TaskKind)

	switch event.Type {
	case events.EventTaskSubmitted:
		m.tasksSubmitted.WithLabelValues(kind).Inc()
	case events.EventTaskStarted:
		m.tasksStarted.WithLabelValues(kind).Inc()
		m.tasksInFlight.WithLabelValues(kind).Inc()
	case events.EventTaskCheckpoint:
		m.checkpoints.WithLabelValues(kind, event.Checkpoint).Inc()
	case events.EventTaskCompleted:
		m.finish(kind, "completed", event)
	case events.EventTaskFailed:
		m.finish(kind, "failed", event)
	case events.EventCallbackSent:
		m.callbacks.WithLabelValues(kind, "sent").Inc()
	case events.EventCallbackFailed:
		m.callbacks.WithLabelValues(kind, "failed").Inc()
	}

	return nil
}

func (m *Metrics) finish(kind, status string, event *events.TaskEvent) {
	m.tasksFinished.WithLabelValues(kind, status).Inc()
	m.tasksInFlight.WithLabelValues(kind).Dec()
	m.taskDuration.WithLabelValues(kind, status).Observe(event.Duration.Seconds())
}

// Middleware counts and times HTTP requests.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return promhttp.InstrumentHandlerDuration(m.httpDuration,
		promhttp.InstrumentHandlerCounter(m.httpRequests, next))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
