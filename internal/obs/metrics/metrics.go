// Package metrics holds MomentumEngine's Prometheus instrumentation:
// scan counts/duration, per-detector latency, and circuit breaker
// state, exposed over promhttp on the side metrics listener that
// cmd/momentumcore's serve command starts (internal/httpapi has no
// metrics route). Registry
// holds named HistogramVec/CounterVec/GaugeVec fields, registers them
// all in its constructor, and exposes small Record*/Increment* helper
// methods for callers.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all Prometheus collectors for one engine instance.
type Registry struct {
	ScansTotal        *prometheus.CounterVec
	ScanDuration      prometheus.Histogram
	DetectorDuration  *prometheus.HistogramVec
	DetectorErrors    *prometheus.CounterVec
	CircuitState      *prometheus.GaugeVec
	ActiveScans       prometheus.Gauge
}

// NewRegistry builds and registers every collector against reg. Pass
// prometheus.NewRegistry() in tests to avoid colliding with the
// package-level default registry across test runs.
func NewRegistry(reg prometheus.Registerer) *Registry {
	m := &Registry{
		ScansTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "momentumcore_scans_total",
			Help: "Total number of Scan calls by outcome (completed|partial|error).",
		}, []string{"outcome"}),

		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "momentumcore_scan_duration_seconds",
			Help:    "Wall-clock duration of a full Scan call.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),

		DetectorDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "momentumcore_detector_duration_seconds",
			Help:    "Duration of a single detector's Scan call within a larger engine Scan.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"detector"}),

		DetectorErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "momentumcore_detector_errors_total",
			Help: "Adapter failures reported per detector.",
		}, []string{"detector"}),

		CircuitState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "momentumcore_circuit_state",
			Help: "Per-endpoint circuit breaker state: 0=closed, 1=half-open, 2=open.",
		}, []string{"endpoint"}),

		ActiveScans: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "momentumcore_active_scans",
			Help: "Number of Scan calls currently in flight.",
		}),
	}

	reg.MustRegister(m.ScansTotal, m.ScanDuration, m.DetectorDuration, m.DetectorErrors, m.CircuitState, m.ActiveScans)
	return m
}

// Handler exposes the metrics in the default Prometheus text format.
func (m *Registry) Handler() http.Handler {
	return promhttp.Handler()
}

// RecordScan records one completed Scan call's outcome and duration.
func (m *Registry) RecordScan(outcome string, durationSeconds float64) {
	m.ScansTotal.WithLabelValues(outcome).Inc()
	m.ScanDuration.Observe(durationSeconds)
}

// RecordDetector records one detector's latency within a scan.
func (m *Registry) RecordDetector(detector string, durationSeconds float64) {
	m.DetectorDuration.WithLabelValues(detector).Observe(durationSeconds)
}

// RecordDetectorError increments the error counter for a detector.
func (m *Registry) RecordDetectorError(detector string) {
	m.DetectorErrors.WithLabelValues(detector).Inc()
}

// SetCircuitState records an endpoint's current breaker state
// (0=closed, 1=half-open, 2=open — matching gobreaker.State's own
// ordering).
func (m *Registry) SetCircuitState(endpoint string, state float64) {
	m.CircuitState.WithLabelValues(endpoint).Set(state)
}

func (m *Registry) IncrementActiveScans() { m.ActiveScans.Inc() }
func (m *Registry) DecrementActiveScans() { m.ActiveScans.Dec() }
