// Package metrics defines hotscrape's own instrumentation. Everything is
// registered against an explicit prometheus.Registerer, never the global
// default, so tests can build as many independent sets as they need.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultNamespace is the metrics namespace used when none is configured.
const DefaultNamespace = "hotscrape"

// Scrape outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Scrape tracks the metrics endpoint itself.
type Scrape struct {
	// Total counts scrapes by outcome (success, failure).
	Total *prometheus.CounterVec
	// Duration tracks how long collecting and encoding a scrape took.
	Duration prometheus.Histogram
}

// NewScrape registers scrape metrics on reg.
func NewScrape(reg prometheus.Registerer, namespace string) *Scrape {
	f := promauto.With(reg)
	return &Scrape{
		Total: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scrapes_total",
				Help:      "Total number of metrics scrapes by outcome.",
			},
			[]string{"outcome"},
		),
		Duration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "scrape_duration_seconds",
				Help:      "Time spent collecting and encoding a metrics scrape.",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}
}

// Observe records one scrape.
func (s *Scrape) Observe(outcome string, seconds float64) {
	if s == nil {
		return
	}
	s.Total.WithLabelValues(outcome).Inc()
	s.Duration.Observe(seconds)
}

// HTTP tracks request handling across all endpoints.
type HTTP struct {
	// RequestsTotal counts total HTTP requests by endpoint and status code.
	RequestsTotal *prometheus.CounterVec
	// RequestDuration tracks request duration in seconds by endpoint.
	RequestDuration *prometheus.HistogramVec
	// InFlightRequests tracks currently processing requests.
	InFlightRequests prometheus.Gauge
}

// NewHTTP registers request metrics on reg.
func NewHTTP(reg prometheus.Registerer, namespace string) *HTTP {
	f := promauto.With(reg)
	return &HTTP{
		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of HTTP requests by endpoint and status code.",
			},
			[]string{"endpoint", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds by endpoint.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		InFlightRequests: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "in_flight_requests",
				Help:      "Number of HTTP requests currently being processed.",
			},
		),
	}
}
