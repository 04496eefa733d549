// Package metrics provides Prometheus metrics for the live pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "meeting_copilot"

// Metrics holds all Prometheus metrics of the service
type Metrics struct {
	registry *prometheus.Registry

	// Completion metrics
	CompletionTotal   *prometheus.CounterVec
	CompletionLatency *prometheus.HistogramVec

	// Pipeline metrics
	QueueDepth *prometheus.GaugeVec
	Detections *prometheus.CounterVec

	// Session metrics
	SessionsActive  prometheus.Gauge
	TranscriptsSeen *prometheus.CounterVec

	// Event delivery metrics
	EventsPublished *prometheus.CounterVec
	EventErrors     *prometheus.CounterVec
}

// New creates all metrics on a private registry that also carries the Go
// runtime and process collectors
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		CompletionTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completion_requests_total",
			Help:      "Total number of completion calls by stage and outcome",
		}, []string{"stage", "outcome"}),
		CompletionLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "completion_duration_seconds",
			Help:      "Duration of completion calls in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"stage"}),

		QueueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Number of items waiting in a pipeline queue",
		}, []string{"queue"}),
		Detections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detections_total",
			Help:      "Total number of detected questions and actions",
		}, []string{"kind"}),

		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of live sessions currently held",
		}),
		TranscriptsSeen: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_updates_total",
			Help:      "Total number of transcript updates received",
		}, []string{"source", "final"}),

		EventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total number of pipeline events handed to a sink",
		}, []string{"sink"}),
		EventErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_errors_total",
			Help:      "Total number of failed event deliveries",
		}, []string{"sink"}),
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveCompletion records one completion call
func (m *Metrics) ObserveCompletion(stage, outcome string, elapsed time.Duration) {
	m.CompletionTotal.WithLabelValues(stage, outcome).Inc()
	if elapsed > 0 {
		m.CompletionLatency.WithLabelValues(stage).Observe(elapsed.Seconds())
	}
}

// SetQueueDepth records how many items wait in a queue
func (m *Metrics) SetQueueDepth(queue string, depth int) {
	m.QueueDepth.WithLabelValues(queue).Set(float64(depth))
}

// CountDetection records a detected question or action
func (m *Metrics) CountDetection(kind string) {
	m.Detections.WithLabelValues(kind).Inc()
}

// RecordSessionStart records a session being opened
func (m *Metrics) RecordSessionStart() {
	m.SessionsActive.Inc()
}

// RecordSessionEnd records a session finishing or being discarded
func (m *Metrics) RecordSessionEnd() {
	m.SessionsActive.Dec()
}

// RecordTranscript records an incoming transcript update
func (m *Metrics) RecordTranscript(source string, final bool) {
	label := "false"
	if final {
		label = "true"
	}
	m.TranscriptsSeen.WithLabelValues(source, label).Inc()
}

// RecordPublish records an event delivery attempt
func (m *Metrics) RecordPublish(sink string, err error) {
	m.EventsPublished.WithLabelValues(sink).Inc()
	if err != nil {
		m.EventErrors.WithLabelValues(sink).Inc()
	}
}
