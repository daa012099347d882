package registrar

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for registrar traffic.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RecordsTotal    *prometheus.CounterVec
	RetriesTotal    prometheus.Counter
	ErrorsTotal     *prometheus.CounterVec
	RenewalsTotal   prometheus.Counter
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registrar_requests_total",
			Help: "Total HTTP requests issued to the registrar.",
		},
		[]string{"endpoint"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "registrar_request_duration_seconds",
			Help:    "HTTP request latency for registrar requests, including retries.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
	records := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registrar_records_total",
			Help: "Total number of records parsed from registrar responses.",
		},
		[]string{"kind"},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "registrar_retries_total",
			Help: "Total number of retry attempts.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registrar_errors_total",
			Help: "Total number of registrar errors by type.",
		},
		[]string{"error_type"},
	)
	renewals := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "registrar_session_renewals_total",
			Help: "Total number of sessions re-created after expiry.",
		},
	)

	registry.MustRegister(requests, requestDuration, records, retries, errorsTotal, renewals)

	return &Metrics{
		Registry:        registry,
		RequestsTotal:   requests,
		RequestDuration: requestDuration,
		RecordsTotal:    records,
		RetriesTotal:    retries,
		ErrorsTotal:     errorsTotal,
		RenewalsTotal:   renewals,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(endpoint string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(endpoint).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(endpoint string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// AddRecords adds n parsed records of the given kind.
func (m *Metrics) AddRecords(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RecordsTotal.WithLabelValues(kind).Add(float64(n))
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	m.AddRetries(1)
}

// AddRetries adds n retries to the retries counter.
func (m *Metrics) AddRetries(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RetriesTotal.Add(float64(n))
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncRenewals increments the session renewal counter.
func (m *Metrics) IncRenewals() {
	if m == nil {
		return
	}
	m.RenewalsTotal.Inc()
}
