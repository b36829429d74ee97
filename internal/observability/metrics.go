package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	evaluationsTotal *prometheus.CounterVec
	diagnosticsTotal *prometheus.CounterVec
	savesTotal       *prometheus.CounterVec
	evalDuration     prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "qpolicy_evaluations_total", Help: "Total policy evaluations"},
			[]string{"action", "matched"},
		),
		diagnosticsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "qpolicy_diagnostics_total", Help: "Total diagnostics produced by validation"},
			[]string{"kind", "severity"},
		),
		savesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "qpolicy_saves_total", Help: "Total policy file save attempts"},
			[]string{"result"},
		),
		evalDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "qpolicy_evaluation_duration_seconds",
				Help:    "Policy evaluation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
	}

	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.evaluationsTotal,
		m.diagnosticsTotal,
		m.savesTotal,
		m.evalDuration,
	)

	return m
}

func (m *Metrics) Handler(reg *prometheus.Registry) http.Handler {
	if reg == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveEvaluation(action string, matched bool, seconds float64) {
	if m == nil {
		return
	}
	matchedLabel := "false"
	if matched {
		matchedLabel = "true"
	}
	m.evaluationsTotal.WithLabelValues(action, matchedLabel).Inc()
	m.evalDuration.Observe(seconds)
}

func (m *Metrics) ObserveDiagnostic(kind, severity string) {
	if m == nil {
		return
	}
	m.diagnosticsTotal.WithLabelValues(kind, severity).Inc()
}

func (m *Metrics) ObserveSave(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.savesTotal.WithLabelValues(result).Inc()
}
