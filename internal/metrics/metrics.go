// Package metrics exposes per-turn Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "policy"

// Turn is the per-turn summary the engine reports.
type Turn struct {
	Act      string
	Lane     string
	Stall    string
	Strength int
	Duration time.Duration
}

// Collector groups the engine's metrics. A nil *Collector is valid and
// records nothing.
type Collector struct {
	decisions  *prometheus.CounterVec
	stalls     *prometheus.CounterVec
	lanes      *prometheus.CounterVec
	strength   prometheus.Gauge
	latency    prometheus.Histogram
	persistErr *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg skips
// registration.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Final arbitration decisions by act.",
		}, []string{"act"}),
		stalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stalls_total",
			Help:      "Stall detector results by severity.",
		}, []string{"severity"}),
		lanes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lanes_total",
			Help:      "Routed lanes.",
		}, []string{"lane"}),
		strength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "allow_strength",
			Help:      "Strength of the most recent allow envelope.",
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "End-to-end turn processing time.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		persistErr: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_errors_total",
			Help:      "Persistence failures by stage.",
		}, []string{"stage"}),
	}
	if reg != nil {
		reg.MustRegister(c.decisions, c.stalls, c.lanes, c.strength, c.latency, c.persistErr)
	}
	return c
}

// ObserveTurn records one processed turn.
func (c *Collector) ObserveTurn(t Turn) {
	if c == nil {
		return
	}
	c.decisions.WithLabelValues(t.Act).Inc()
	if t.Stall != "" {
		c.stalls.WithLabelValues(t.Stall).Inc()
	}
	if t.Lane != "" {
		c.lanes.WithLabelValues(t.Lane).Inc()
	}
	c.strength.Set(float64(t.Strength))
	c.latency.Observe(t.Duration.Seconds())
}

// PersistFailed counts a failed ledger, provenance or state write.
func (c *Collector) PersistFailed(stage string) {
	if c == nil {
		return
	}
	c.persistErr.WithLabelValues(stage).Inc()
}
