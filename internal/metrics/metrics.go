package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Collector methods are safe to call on a nil receiver so that callers
// without metrics wiring need no branches.
type Collector struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InFlightGauge   prometheus.Gauge

	BookingOperationsTotal  *prometheus.CounterVec
	ValidationFailuresTotal *prometheus.CounterVec
	CacheLookupsTotal       *prometheus.CounterVec
	EventsPublishedTotal    *prometheus.CounterVec
}

func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, path, and status code.",
		}, []string{"method", "path", "status"}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "path", "status"}),

		InFlightGauge: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),

		BookingOperationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bookings",
			Name:      "operations_total",
			Help:      "Booking operations by operation and outcome.",
		}, []string{"operation", "outcome"}),

		ValidationFailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bookings",
			Name:      "validation_failures_total",
			Help:      "Rejected booking requests by operation and rule message.",
		}, []string{"operation", "reason"}),

		CacheLookupsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Next-booking cache lookups by result.",
		}, []string{"result"}),

		EventsPublishedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Booking lifecycle events by type and outcome.",
		}, []string{"type", "outcome"}),
	}
}

func (c *Collector) ObserveOperation(operation, outcome string) {
	if c == nil {
		return
	}
	c.BookingOperationsTotal.WithLabelValues(operation, outcome).Inc()
}

func (c *Collector) ObserveValidationFailure(operation, reason string) {
	if c == nil {
		return
	}
	c.ValidationFailuresTotal.WithLabelValues(operation, reason).Inc()
}

func (c *Collector) ObserveCacheLookup(hit bool) {
	if c == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.CacheLookupsTotal.WithLabelValues(result).Inc()
}

func (c *Collector) ObserveEvent(eventType string, err error) {
	if c == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	c.EventsPublishedTotal.WithLabelValues(eventType, outcome).Inc()
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
