// Package metrics publishes Prometheus observability for the admission
// pipeline, grounded on the pack's Recorder/Gatherer construction but
// retargeted from per-endpoint auth/cache metrics to the admission
// outcome/latency/threat-score metrics named in the monitoring.*
// configuration namespace.
package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder publishes Prometheus metrics for admission pipeline activity.
type Recorder struct {
	gatherer prometheus.Gatherer
	handler  http.Handler

	admissions  *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	threatScore prometheus.Histogram
}

// NewRecorder constructs a Prometheus-backed Recorder. When reg is nil a
// dedicated registry is created so multiple recorders can coexist without
// conflicting with the global default registerer.
func NewRecorder(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	reg.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	admissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "admitgate",
		Subsystem: "admission",
		Name:      "admissions_total",
		Help:      "Total admissions processed by the pipeline, labeled by outcome.",
	}, []string{"outcome"})

	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "admitgate",
		Subsystem: "admission",
		Name:      "latency_seconds",
		Help:      "Latency distribution for completed admissions.",
		Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"outcome"})

	threatScore := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "admitgate",
		Subsystem: "admission",
		Name:      "threat_score",
		Help:      "Distribution of cumulative threat scores assigned by the scorer.",
		Buckets:   []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100, 150, 200},
	})

	reg.MustRegister(admissions, latency, threatScore)

	handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	return &Recorder{
		gatherer:    reg,
		handler:     handler,
		admissions:  admissions,
		latency:     latency,
		threatScore: threatScore,
	}
}

// Handler exposes the Prometheus HTTP handler for the recorder's registry.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "metrics unavailable", http.StatusServiceUnavailable)
		})
	}
	return r.handler
}

// Gatherer returns the underlying Prometheus gatherer for tests and
// advanced integrations.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.gatherer
}

// ObserveAdmission records the outcome and latency of one completed
// admission. outcome is one of "admitted", "rate_limited",
// "auth_failed", "invalid_input", "threat_detected", "cancelled", or
// "internal_error".
func (r *Recorder) ObserveAdmission(outcome string, duration time.Duration) {
	if r == nil {
		return
	}
	outcomeLabel := normalizeLabel(outcome)
	r.admissions.WithLabelValues(outcomeLabel).Inc()
	r.latency.WithLabelValues(outcomeLabel).Observe(duration.Seconds())
}

// ObserveThreatScore records one request's cumulative threat score,
// regardless of whether it was ultimately blocked.
func (r *Recorder) ObserveThreatScore(score float64) {
	if r == nil {
		return
	}
	r.threatScore.Observe(score)
}

func normalizeLabel(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
