// Package metrics exposes Prometheus instrumentation for the license server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "licensed"

// Metrics owns a private registry so tests and multiple servers in one
// process never collide on the global default registry.
type Metrics struct {
	registry *prometheus.Registry

	activations    *prometheus.CounterVec
	hardwareChecks *prometheus.CounterVec
	codesGenerated prometheus.Counter

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		activations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activations_total",
			Help:      "Activation attempts by result.",
		}, []string{"result"}),
		hardwareChecks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hardware_checks_total",
			Help:      "Hardware status checks by outcome.",
		}, []string{"active"}),
		codesGenerated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "codes_generated_total",
			Help:      "Activation codes generated.",
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Activation implements license.Recorder.
func (m *Metrics) Activation(result string) {
	m.activations.WithLabelValues(result).Inc()
}

// HardwareCheck implements license.Recorder.
func (m *Metrics) HardwareCheck(active bool) {
	m.hardwareChecks.WithLabelValues(strconv.FormatBool(active)).Inc()
}

// CodesGenerated implements license.Recorder.
func (m *Metrics) CodesGenerated(n int) {
	m.codesGenerated.Add(float64(n))
}

// ObserveHTTP records one finished request.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	code := strconv.Itoa(status)
	m.httpRequests.WithLabelValues(method, route, code).Inc()
	m.httpDuration.WithLabelValues(method, route, code).Observe(elapsed.Seconds())
}
