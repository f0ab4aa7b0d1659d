package metrics

import "github.com/prometheus/client_golang/prometheus"

// TriageMetrics exposes counters/histograms for triage pipeline flows.
type TriageMetrics struct {
	cyclesTotal    *prometheus.CounterVec
	stageFallbacks *prometheus.CounterVec
	crisisTotal    prometheus.Counter
	cycleLatency   *prometheus.HistogramVec
}

func NewTriageMetrics(reg prometheus.Registerer) *TriageMetrics {
	m := &TriageMetrics{
		cyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sparsh",
			Subsystem: "triage",
			Name:      "cycles_total",
			Help:      "Total triage cycles by terminal outcome",
		}, []string{"outcome", "risk_tier"}),
		stageFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sparsh",
			Subsystem: "triage",
			Name:      "stage_fallbacks_total",
			Help:      "Stage failures recovered via the degraded path",
		}, []string{"stage", "reason"}),
		crisisTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sparsh",
			Subsystem: "triage",
			Name:      "crisis_signals_total",
			Help:      "Crisis signals raised",
		}),
		cycleLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sparsh",
			Subsystem: "triage",
			Name:      "cycle_latency_seconds",
			Help:      "End-to-end latency of a triage cycle",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.cyclesTotal, m.stageFallbacks, m.crisisTotal, m.cycleLatency)
	return m
}

func (m *TriageMetrics) ObserveCycle(outcome, riskTier string, seconds float64) {
	if m == nil {
		return
	}
	m.cyclesTotal.WithLabelValues(outcome, riskTier).Inc()
	m.cycleLatency.WithLabelValues(outcome).Observe(seconds)
}

func (m *TriageMetrics) ObserveFallback(stage, reason string) {
	if m == nil {
		return
	}
	m.stageFallbacks.WithLabelValues(stage, reason).Inc()
}

func (m *TriageMetrics) ObserveCrisis() {
	if m == nil {
		return
	}
	m.crisisTotal.Inc()
}
