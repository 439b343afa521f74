package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's prometheus collectors on a private registry.
// All methods are safe on a nil receiver.
type Metrics struct {
	registry         *prometheus.Registry
	requests         *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	errors           *prometheus.CounterVec
	auditEntries     *prometheus.CounterVec
	cascadeRemovals  prometheus.Counter
	cascadeFailures  prometheus.Counter
	cascadeRetries   *prometheus.CounterVec
	ticketsGenerated prometheus.Counter
}

// NewMetrics registers collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_http_requests_total",
			Help: "HTTP requests by route, method and status",
		}, []string{"route", "method", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crm_http_request_duration_seconds",
			Help:    "HTTP request latency by route and method",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"route", "method"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_http_errors_total",
			Help: "Error responses by route, method and error code",
		}, []string{"route", "method", "code"}),
		auditEntries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_audit_entries_total",
			Help: "Audit entries appended by aggregate and action",
		}, []string{"aggregate", "action"}),
		cascadeRemovals: factory.NewCounter(prometheus.CounterOpts{
			Name: "crm_cascade_removals_total",
			Help: "Customers an inactive employee was removed from",
		}),
		cascadeFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "crm_cascade_failures_total",
			Help: "Cascade steps that failed and were queued for retry",
		}),
		cascadeRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_cascade_retries_total",
			Help: "Cascade retry attempts by outcome",
		}, []string{"outcome"}),
		ticketsGenerated: factory.NewCounter(prometheus.CounterOpts{
			Name: "crm_tickets_created_total",
			Help: "Tickets created",
		}),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(route, method, code).Inc()
}

// RecordAudit counts an appended audit entry.
func (m *Metrics) RecordAudit(aggregate, action string) {
	if m == nil {
		return
	}
	m.auditEntries.WithLabelValues(aggregate, action).Inc()
}

// RecordCascade counts the outcome of one deactivation fan-out.
func (m *Metrics) RecordCascade(removed, failed int) {
	if m == nil {
		return
	}
	m.cascadeRemovals.Add(float64(removed))
	m.cascadeFailures.Add(float64(failed))
}

// RecordCascadeRetry counts a retry attempt; outcome is "removed", "noop", "requeued" or "dropped".
func (m *Metrics) RecordCascadeRetry(outcome string) {
	if m == nil {
		return
	}
	m.cascadeRetries.WithLabelValues(outcome).Inc()
}

// RecordTicketCreated counts a created ticket.
func (m *Metrics) RecordTicketCreated() {
	if m == nil {
		return
	}
	m.ticketsGenerated.Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
