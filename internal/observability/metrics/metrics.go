package metrics

import "github.com/prometheus/client_golang/prometheus"

// ConversationMetrics exposes counters/histograms for the response engine.
type ConversationMetrics struct {
	turnsTotal        *prometheus.CounterVec
	crisisTotal       prometheus.Counter
	generatorFallback prometheus.Counter
	snapshotsTotal    *prometheus.CounterVec
	turnLatency       prometheus.Histogram
}

func NewConversationMetrics(reg prometheus.Registerer) *ConversationMetrics {
	m := &ConversationMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "attune",
			Subsystem: "conversation",
			Name:      "turns_total",
			Help:      "Total processed chat turns",
		}, []string{"category", "generated"}),
		crisisTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "attune",
			Subsystem: "conversation",
			Name:      "crisis_total",
			Help:      "Total turns answered with the crisis resource message",
		}),
		generatorFallback: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "attune",
			Subsystem: "conversation",
			Name:      "generator_fallback_total",
			Help:      "Generator failures recovered via local templates",
		}),
		snapshotsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "attune",
			Subsystem: "emotion",
			Name:      "snapshots_total",
			Help:      "Total aggregated emotion snapshots",
		}, []string{"dominant"}),
		turnLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "attune",
			Subsystem: "conversation",
			Name:      "turn_latency_seconds",
			Help:      "Latency of full chat turn processing",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.crisisTotal, m.generatorFallback, m.snapshotsTotal, m.turnLatency)
	return m
}

func (m *ConversationMetrics) ObserveTurn(category string, generated bool) {
	if m == nil {
		return
	}
	label := "false"
	if generated {
		label = "true"
	}
	m.turnsTotal.WithLabelValues(category, label).Inc()
}

func (m *ConversationMetrics) ObserveCrisis() {
	if m == nil {
		return
	}
	m.crisisTotal.Inc()
}

func (m *ConversationMetrics) ObserveGeneratorFallback() {
	if m == nil {
		return
	}
	m.generatorFallback.Inc()
}

func (m *ConversationMetrics) ObserveSnapshot(dominant string) {
	if m == nil {
		return
	}
	m.snapshotsTotal.WithLabelValues(dominant).Inc()
}

func (m *ConversationMetrics) ObserveTurnLatency(seconds float64) {
	if m == nil {
		return
	}
	m.turnLatency.Observe(seconds)
}
