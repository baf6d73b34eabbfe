// Package metrics exposes purchase flow and validation endpoint counters to
// Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"iapgate/internal/application/purchaseflow"
	"iapgate/internal/domain/purchase"
)

const namespace = "iapgate"

// Metrics holds the collectors and the registry they are registered in.
type Metrics struct {
	registry *prometheus.Registry

	purchaseEvents     *prometheus.CounterVec
	validationOutcomes *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		purchaseEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "purchaseflow",
				Name:      "purchase_events_total",
				Help:      "Store purchase events seen by the purchase flow, by kind.",
			},
			[]string{"kind"},
		),
		validationOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "purchaseflow",
				Name:      "validations_total",
				Help:      "Receipt validations, by trigger and outcome.",
			},
			[]string{"trigger", "outcome"},
		),

		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Requests handled by the validation endpoint.",
			},
			[]string{"method", "path", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of validation endpoint requests.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
			},
			[]string{"method", "path"},
		),
	}

	m.registry.MustRegister(
		m.purchaseEvents,
		m.validationOutcomes,
		m.httpRequests,
		m.httpDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
	return m
}

var _ purchaseflow.Recorder = (*Metrics)(nil)

func (m *Metrics) PurchaseEvent(kind string) {
	m.purchaseEvents.WithLabelValues(kind).Inc()
}

func (m *Metrics) ValidationOutcome(trigger string, outcome purchase.Outcome) {
	m.validationOutcomes.WithLabelValues(trigger, outcome.String()).Inc()
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, path string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler exposing the registered metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
