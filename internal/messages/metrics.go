package messages

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for the message service.
type Metrics struct {
	WritesTotal          *prometheus.CounterVec
	WriteDuration        *prometheus.HistogramVec
	PublishFailuresTotal *prometheus.CounterVec
}

// NewMetrics registers the message service metrics once per process.
//
// Metrics:
//   - pitchroom_message_writes_total{op,result}
//   - pitchroom_message_write_duration_seconds{op}
//   - pitchroom_feed_publish_failures_total{event_type}
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			WritesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "pitchroom_message_writes_total",
					Help: "Total number of durable message writes",
				},
				[]string{"op", "result"},
			),
			WriteDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "pitchroom_message_write_duration_seconds",
					Help:    "Duration of durable message writes in seconds",
					Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
				},
				[]string{"op"},
			),
			PublishFailuresTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "pitchroom_feed_publish_failures_total",
					Help: "Change events that could not be published after a durable write",
				},
				[]string{"event_type"},
			),
		}
	})
	return globalMetrics
}
