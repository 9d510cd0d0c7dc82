package tui

import (
	"time"

	"github.com/NimbleMarkets/ntcharts/sparkline"

	"github.com/fyrsmithlabs/pitchroom/internal/chat"
)

const (
	sparklineWidth  = 30
	sparklineHeight = 1
	activityBucket  = time.Minute
)

// activity counts messages per minute over the sparklineWidth minutes up
// to now, oldest bucket first.
func activity(messages []chat.Message, now time.Time) []float64 {
	buckets := make([]float64, sparklineWidth)
	start := now.Truncate(activityBucket).Add(-activityBucket * (sparklineWidth - 1))
	for _, m := range messages {
		if m.CreatedAt.Before(start) || m.CreatedAt.After(now) {
			continue
		}
		i := int(m.CreatedAt.Sub(start) / activityBucket)
		if i >= 0 && i < sparklineWidth {
			buckets[i]++
		}
	}
	return buckets
}

// createSparkline renders data as a one-line sparkline.
func createSparkline(data []float64) string {
	spark := sparkline.New(sparklineWidth, sparklineHeight)
	for _, v := range data {
		spark.Push(v)
	}
	spark.Draw()
	return sparklineStyle.Render(spark.View())
}
