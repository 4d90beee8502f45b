package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	// HTTP metrics for the health and metrics endpoint
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Pipeline metrics
	DocumentsReceived *prometheus.CounterVec
	DocumentsFiltered *prometheus.CounterVec
	RecordsEmitted    *prometheus.CounterVec
	NarrowViolations  *prometheus.CounterVec
	PipelinesRunning  prometheus.Gauge
	PipelineFailures  *prometheus.CounterVec

	// Backend metrics
	Inserts        *prometheus.CounterVec
	InsertDuration *prometheus.HistogramVec
	Sweeps         *prometheus.CounterVec

	// Frontend metrics
	PollErrors    *prometheus.CounterVec
	DecodeErrors  *prometheus.CounterVec
	SubscriberLag *prometheus.CounterVec

	startTime time.Time

	snapshot MetricsSnapshot
	mu       sync.RWMutex
}

// MetricsSnapshot holds current totals for the health endpoint
type MetricsSnapshot struct {
	Documents      int64
	Records        int64
	InsertFailures int64
	Lagged         int64
}

// NewMetrics creates a metrics collector registered with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "iot2db_http_requests_total",
				Help: "Total number of HTTP requests to the metrics endpoint",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "iot2db_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		DocumentsReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "iot2db_documents_received_total",
				Help: "Documents read from frontends",
			},
			[]string{"data"},
		),
		DocumentsFiltered: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "iot2db_documents_filtered_total",
				Help: "Documents dropped by a filter expression",
			},
			[]string{"data"},
		),
		RecordsEmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "iot2db_records_emitted_total",
				Help: "Records produced by mappings",
			},
			[]string{"data"},
		),
		NarrowViolations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "iot2db_narrow_violations_total",
				Help: "Narrow events matched by more than one value",
			},
			[]string{"data"},
		),
		PipelinesRunning: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "iot2db_pipelines_running",
				Help: "Number of running pipelines",
			},
		),
		PipelineFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "iot2db_pipeline_failures_total",
				Help: "Pipelines that stopped with an error",
			},
			[]string{"data"},
		),

		Inserts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "iot2db_inserts_total",
				Help: "Insert attempts by outcome",
			},
			[]string{"data", "status"},
		),
		InsertDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "iot2db_insert_duration_seconds",
				Help:    "Insert round-trip duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"data"},
		),
		Sweeps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "iot2db_retention_sweeps_total",
				Help: "Retention sweeps by outcome",
			},
			[]string{"data", "status"},
		),

		PollErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "iot2db_poll_errors_total",
				Help: "Failed polling cycles",
			},
			[]string{"frontend"},
		),
		DecodeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "iot2db_decode_errors_total",
				Help: "Pub/sub payloads that were not valid JSON",
			},
			[]string{"frontend"},
		),
		SubscriberLag: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "iot2db_subscriber_lagged_messages_total",
				Help: "Messages dropped because a subscriber fell behind",
			},
			[]string{"frontend", "topic"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "iot2db_uptime_seconds",
			Help: "Process uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordDocument counts a document read by the pipeline of data.
func (m *Metrics) RecordDocument(data string) {
	if m == nil {
		return
	}
	m.DocumentsReceived.WithLabelValues(data).Inc()
	m.mu.Lock()
	m.snapshot.Documents++
	m.mu.Unlock()
}

// RecordFiltered counts a document dropped by a filter.
func (m *Metrics) RecordFiltered(data string) {
	if m == nil {
		return
	}
	m.DocumentsFiltered.WithLabelValues(data).Inc()
}

// RecordRecord counts a record produced by a mapping.
func (m *Metrics) RecordRecord(data string) {
	if m == nil {
		return
	}
	m.RecordsEmitted.WithLabelValues(data).Inc()
	m.mu.Lock()
	m.snapshot.Records++
	m.mu.Unlock()
}

// RecordNarrowViolation counts a narrow event claimed by several values.
func (m *Metrics) RecordNarrowViolation(data string) {
	if m == nil {
		return
	}
	m.NarrowViolations.WithLabelValues(data).Inc()
}

// RecordInsert records the outcome and duration of one insert.
func (m *Metrics) RecordInsert(data string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	m.Inserts.WithLabelValues(data, status(err)).Inc()
	m.InsertDuration.WithLabelValues(data).Observe(duration.Seconds())
	if err != nil {
		m.mu.Lock()
		m.snapshot.InsertFailures++
		m.mu.Unlock()
	}
}

// RecordSweep records the outcome of a retention sweep.
func (m *Metrics) RecordSweep(data string, err error) {
	if m == nil {
		return
	}
	m.Sweeps.WithLabelValues(data, status(err)).Inc()
}

// RecordPollError counts a failed polling cycle.
func (m *Metrics) RecordPollError(frontend string) {
	if m == nil {
		return
	}
	m.PollErrors.WithLabelValues(frontend).Inc()
}

// RecordDecodeError counts a payload that fell back to raw text.
func (m *Metrics) RecordDecodeError(frontend string) {
	if m == nil {
		return
	}
	m.DecodeErrors.WithLabelValues(frontend).Inc()
}

// RecordLag counts messages a subscriber missed.
func (m *Metrics) RecordLag(frontend, topic string, missed uint64) {
	if m == nil {
		return
	}
	m.SubscriberLag.WithLabelValues(frontend, topic).Add(float64(missed))
	m.mu.Lock()
	m.snapshot.Lagged += int64(missed)
	m.mu.Unlock()
}

// PipelineStarted increments the running pipeline gauge.
func (m *Metrics) PipelineStarted() {
	if m == nil {
		return
	}
	m.PipelinesRunning.Inc()
}

// PipelineStopped decrements the running gauge and counts failures.
func (m *Metrics) PipelineStopped(data string, err error) {
	if m == nil {
		return
	}
	m.PipelinesRunning.Dec()
	if err != nil {
		m.PipelineFailures.WithLabelValues(data).Inc()
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
