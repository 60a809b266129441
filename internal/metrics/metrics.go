package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns its registry so several instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	enrichments     *prometheus.CounterVec
	providerCalls   *prometheus.HistogramVec
	inFlight        prometheus.Gauge
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		enrichments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "epatra",
			Name:      "enrichments_total",
			Help:      "Document enrichments by terminal status and failure kind.",
		}, []string{"status", "kind"}),
		providerCalls: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "epatra",
			Name:      "provider_call_seconds",
			Help:      "Latency of OCR and analysis provider calls.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{"op", "outcome"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "epatra",
			Name:      "enrichments_in_flight",
			Help:      "Enrichments currently scheduled or running.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "epatra",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern and status code.",
		}, []string{"method", "route", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "epatra",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		m.enrichments,
		m.providerCalls,
		m.inFlight,
		m.requests,
		m.requestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// EnrichmentFinished counts a terminal transition. kind is empty on success.
func (m *Metrics) EnrichmentFinished(status, kind string) {
	m.enrichments.WithLabelValues(status, kind).Inc()
}

func (m *Metrics) ProviderCall(op string, err error, took time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.providerCalls.WithLabelValues(op, outcome).Observe(took.Seconds())
}

func (m *Metrics) EnrichmentStarted() {
	m.inFlight.Inc()
}

func (m *Metrics) EnrichmentDone() {
	m.inFlight.Dec()
}

func (m *Metrics) Request(method, route string, code int, took time.Duration) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(took.Seconds())
}
