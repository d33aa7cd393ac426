package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	QuoteRequestsTotal *prometheus.CounterVec
	QuoteDuration      prometheus.Histogram
	CarrierErrors      *prometheus.CounterVec
	FeedExportsTotal   prometheus.Counter
	FeedOrdersExported prometheus.Counter
	WebhooksTotal      *prometheus.CounterVec
}

// NewMetrics creates Prometheus metrics registered on the given
// registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		QuoteRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shipstation_quote_requests_total",
				Help: "Total rate quote requests by outcome",
			},
			[]string{"status"},
		),
		QuoteDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "shipstation_quote_duration_seconds",
				Help:    "Rate quote duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		CarrierErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shipstation_carrier_errors_total",
				Help: "Total carrier API errors by error type",
			},
			[]string{"error_type"},
		),
		FeedExportsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "shipstation_feed_exports_total",
				Help: "Total order feed export requests",
			},
		),
		FeedOrdersExported: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "shipstation_feed_orders_exported_total",
				Help: "Total orders written to the export feed",
			},
		),
		WebhooksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shipstation_webhooks_total",
				Help: "Total ship-notify webhook deliveries by outcome",
			},
			[]string{"status"},
		),
	}
}

// RecordQuote records a rate quote request metric.
func (m *Metrics) RecordQuote(status string, duration float64) {
	m.QuoteRequestsTotal.WithLabelValues(status).Inc()
	m.QuoteDuration.Observe(duration)
}

// RecordCarrierError records a carrier API error metric.
func (m *Metrics) RecordCarrierError(errorType string) {
	m.CarrierErrors.WithLabelValues(errorType).Inc()
}

// RecordFeedExport records one feed export serving n orders.
func (m *Metrics) RecordFeedExport(n int) {
	m.FeedExportsTotal.Inc()
	m.FeedOrdersExported.Add(float64(n))
}

// RecordWebhook records a webhook delivery metric.
func (m *Metrics) RecordWebhook(status string) {
	m.WebhooksTotal.WithLabelValues(status).Inc()
}
