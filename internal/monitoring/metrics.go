package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	ScansTotal        *prometheus.CounterVec
	AdsBlockedTotal   prometheus.Counter
	DecisionsTotal    *prometheus.CounterVec
	ErrorsTotal       *prometheus.CounterVec
	ClassifierLatency prometheus.Histogram
}

func NewMetrics() *Metrics {
	return &Metrics{
		ScansTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "adscrub_scans_total",
			Help: "Scan cycles by outcome",
		}, []string{"outcome"}), // 'completed', 'fallback', 'whitelisted', 'disabled'
		AdsBlockedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "adscrub_ads_blocked_total",
			Help: "Elements removed as ads",
		}),
		DecisionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "adscrub_decisions_total",
			Help: "Per-candidate decisions by reason",
		}, []string{"reason"}),
		ErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "adscrub_errors_total",
			Help: "Errors encountered",
		}, []string{"type"}), // e.g. 'classifier_timeout', 'classifier_failed', 'stats_failed'
		ClassifierLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "adscrub_classifier_latency_seconds",
			Help:    "Remote classifier round-trip latency",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncScan(outcome string) {
	m.ScansTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AddAdsBlocked(n int) {
	m.AdsBlockedTotal.Add(float64(n))
}

func (m *Metrics) IncDecision(reason string) {
	m.DecisionsTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncError(errType string) {
	m.ErrorsTotal.WithLabelValues(errType).Inc()
}

func (m *Metrics) ObserveClassifierLatency(d time.Duration) {
	m.ClassifierLatency.Observe(d.Seconds())
}
