// Package metrics exposes Prometheus counters for the HTTP surface and the
// recognition/generation pipelines.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ayusman/voiceheard/internal/events"
)

// Metrics holds the application's collectors.
type Metrics struct {
	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errorsTotal     prometheus.Counter
	eventsTotal     *prometheus.CounterVec
	utterancesTotal *prometheus.CounterVec
	timelinesTotal  prometheus.Counter
	activeSessions  prometheus.Gauge
}

// New creates and registers the collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voiceheard_http_requests_total",
			Help: "Total number of HTTP requests received",
		}, []string{"method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voiceheard_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voiceheard_http_errors_total",
			Help: "Total number of HTTP responses with error status (4xx or 5xx)",
		}),
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voiceheard_events_total",
			Help: "Recoverable pipeline events by kind",
		}, []string{"kind"}),
		utterancesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voiceheard_utterances_total",
			Help: "Closed utterances by close reason",
		}, []string{"reason"}),
		timelinesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voiceheard_timelines_total",
			Help: "Animation timelines generated",
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "voiceheard_active_recognition_sessions",
			Help: "Recognition sessions currently open (0 or 1)",
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.errorsTotal,
		m.eventsTotal,
		m.utterancesTotal,
		m.timelinesTotal,
		m.activeSessions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Emit counts a pipeline event. Metrics is an events.Sink.
func (m *Metrics) Emit(e events.Event) {
	m.eventsTotal.WithLabelValues(string(e.Kind)).Inc()
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(method string, status int, d time.Duration) {
	m.requestsTotal.WithLabelValues(method, http.StatusText(status)).Inc()
	m.requestDuration.WithLabelValues(method).Observe(d.Seconds())
	if status >= 400 {
		m.errorsTotal.Inc()
	}
}

// IncUtterances counts a closed utterance.
func (m *Metrics) IncUtterances(reason string) {
	m.utterancesTotal.WithLabelValues(reason).Inc()
}

// IncTimelines counts a generated timeline.
func (m *Metrics) IncTimelines() {
	m.timelinesTotal.Inc()
}

// SetActiveSessions sets the active session gauge.
func (m *Metrics) SetActiveSessions(n int) {
	m.activeSessions.Set(float64(n))
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics. updateGauges, if set, runs before each scrape.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		h.ServeHTTP(w, r)
	})
}
