package infra

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "timelens"

// Metrics holds the service's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	TransformsTotal    *prometheus.CounterVec
	TransformDuration  prometheus.Histogram
	GenerationAttempts *prometheus.CounterVec
	QuotaRejections    prometheus.Counter
	WebhookEvents      *prometheus.CounterVec
	CleanupFailures    prometheus.Counter
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		TransformsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "transforms_total",
			Help:      "Transformation runs by final outcome",
		}, []string{"outcome"}),
		TransformDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "transform_duration_seconds",
			Help:      "End-to-end duration of successful transformations",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 40, 80},
		}),
		GenerationAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "generation_attempts_total",
			Help:      "Provider calls by provider and result kind",
		}, []string{"provider", "result"}),
		QuotaRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "quota_rejections_total",
			Help:      "Transformations rejected for exhausted daily quota",
		}),
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "billing_webhook_events_total",
			Help:      "Billing webhook events by canonical type and outcome",
		}, []string{"type", "outcome"}),
		CleanupFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "asset_cleanup_failures_total",
			Help:      "Staged assets that could not be deleted during compensation",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.TransformsTotal,
		m.TransformDuration,
		m.GenerationAttempts,
		m.QuotaRejections,
		m.WebhookEvents,
		m.CleanupFailures,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
