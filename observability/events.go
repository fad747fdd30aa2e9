package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type eventMetrics struct {
	emitted *prometheus.CounterVec
	rewards *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking committed custody events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "scavenger",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Count of committed events segmented by type.",
			}, []string{"type"}),
			rewards: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "scavenger",
				Subsystem: "events",
				Name:      "reward_points_total",
				Help:      "Reward points paid segmented by share kind.",
			}, []string{"share"}),
		}
		prometheus.MustRegister(eventRegistry.emitted, eventRegistry.rewards)
	})
	return eventRegistry
}

// RecordEvent increments the counter for the supplied event type.
func (m *eventMetrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	normalized := strings.TrimSpace(eventType)
	if normalized == "" {
		normalized = "unknown"
	}
	m.emitted.WithLabelValues(normalized).Inc()
}

// RecordReward adds amount to the paid points of share.
func (m *eventMetrics) RecordReward(share string, amount uint64) {
	if m == nil {
		return
	}
	normalized := strings.ToLower(strings.TrimSpace(share))
	if normalized == "" {
		normalized = "unknown"
	}
	m.rewards.WithLabelValues(normalized).Add(float64(amount))
}
