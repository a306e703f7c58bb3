package metrics

import "github.com/prometheus/client_golang/prometheus"

// EngineMetrics exposes counters/histograms for the conversation engine
// and the appointment lifecycle.
type EngineMetrics struct {
	turnsTotal        *prometheus.CounterVec
	extractionLatency *prometheus.HistogramVec
	transitionsTotal  *prometheus.CounterVec
	storeRetriesTotal prometheus.Counter
	notifyTotal       *prometheus.CounterVec
}

func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	m := &EngineMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookline",
			Subsystem: "engine",
			Name:      "turns_total",
			Help:      "Total conversation turns processed",
		}, []string{"outcome"}),
		extractionLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bookline",
			Subsystem: "engine",
			Name:      "extraction_latency_seconds",
			Help:      "Latency of LLM slot extraction calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider", "status"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookline",
			Subsystem: "appointments",
			Name:      "transitions_total",
			Help:      "Total appointment status transitions",
		}, []string{"from", "to", "status"}),
		storeRetriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bookline",
			Subsystem: "store",
			Name:      "update_retries_total",
			Help:      "Update verification retries against the appointment store",
		}),
		notifyTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookline",
			Subsystem: "notify",
			Name:      "deliveries_total",
			Help:      "Notification delivery attempts by channel",
		}, []string{"channel", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.extractionLatency, m.transitionsTotal, m.storeRetriesTotal, m.notifyTotal)
	return m
}

func (m *EngineMetrics) ObserveTurn(outcome string) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(outcome).Inc()
}

func (m *EngineMetrics) ObserveExtraction(provider, status string, seconds float64) {
	if m == nil {
		return
	}
	m.extractionLatency.WithLabelValues(provider, status).Observe(seconds)
}

func (m *EngineMetrics) ObserveTransition(from, to, status string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(from, to, status).Inc()
}

func (m *EngineMetrics) ObserveStoreRetry() {
	if m == nil {
		return
	}
	m.storeRetriesTotal.Inc()
}

func (m *EngineMetrics) ObserveNotify(channel, status string) {
	if m == nil {
		return
	}
	m.notifyTotal.WithLabelValues(channel, status).Inc()
}
