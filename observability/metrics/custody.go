package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type CustodyMetrics struct {
	calls          *prometheus.CounterVec
	callLatency    *prometheus.HistogramVec
	height         prometheus.Gauge
	totalMaterials prometheus.Gauge
	totalWeight    prometheus.Gauge
	totalTokens    prometheus.Gauge
}

var (
	custodyOnce     sync.Once
	custodyRegistry *CustodyMetrics
)

func Custody() *CustodyMetrics {
	custodyOnce.Do(func() {
		custodyRegistry = &CustodyMetrics{
			calls: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "custody_calls_total",
				Help: "Count of executed calls by method and outcome kind.",
			}, []string{"method", "outcome"}),
			callLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "custody_call_duration_seconds",
				Help:    "Time spent executing and committing a call.",
				Buckets: prometheus.DefBuckets,
			}, []string{"method"}),
			height: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "custody_state_height",
				Help: "Number of state commits since genesis.",
			}),
			totalMaterials: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "custody_active_materials",
				Help: "Materials currently active on the ledger.",
			}),
			totalWeight: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "custody_active_weight_grams",
				Help: "Combined weight of active materials in grams.",
			}),
			totalTokens: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "custody_reward_points",
				Help: "Reward points issued for verified materials.",
			}),
		}
		prometheus.MustRegister(
			custodyRegistry.calls,
			custodyRegistry.callLatency,
			custodyRegistry.height,
			custodyRegistry.totalMaterials,
			custodyRegistry.totalWeight,
			custodyRegistry.totalTokens,
		)
	})
	return custodyRegistry
}

// ObserveCall records a call outcome. An empty outcome means success.
func (m *CustodyMetrics) ObserveCall(method, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	if outcome == "" {
		outcome = "ok"
	}
	m.calls.WithLabelValues(method, outcome).Inc()
	m.callLatency.WithLabelValues(method).Observe(duration.Seconds())
}

func (m *CustodyMetrics) SetHeight(height uint64) {
	if m == nil {
		return
	}
	m.height.Set(float64(height))
}

// SetAggregates mirrors the ledger totals.
func (m *CustodyMetrics) SetAggregates(materials, weight uint64, tokens float64) {
	if m == nil {
		return
	}
	m.totalMaterials.Set(float64(materials))
	m.totalWeight.Set(float64(weight))
	m.totalTokens.Set(tokens)
}
