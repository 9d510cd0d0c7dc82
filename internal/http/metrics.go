package http

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/pitchroom/internal/http"

// feedRoute is the event stream route. Streams are measured by
// apiMetrics.streamOpened, not the request middleware.
const feedRoute = "/api/v1/conversations/:id/feed"

// apiMetrics holds the otel instruments of the message API.
type apiMetrics struct {
	requests     metric.Int64Counter
	latency      metric.Float64Histogram
	openStreams  metric.Int64UpDownCounter
	streamLife   metric.Float64Histogram
	streamEvents metric.Int64Counter
}

// newAPIMetrics creates the API instruments on meter. An instrument that
// fails to register is logged and replaced by a no-op.
func newAPIMetrics(meter metric.Meter, logger *zap.Logger) *apiMetrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	var nop noop.Meter
	m := &apiMetrics{}
	var err error

	m.requests, err = meter.Int64Counter(
		"pitchroom.http.requests_total",
		metric.WithDescription("API requests by method, route pattern and status. Event streams are excluded."),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		logger.Warn("failed to create requests counter", zap.Error(err))
		m.requests, _ = nop.Int64Counter("")
	}

	m.latency, err = meter.Float64Histogram(
		"pitchroom.http.request_duration_seconds",
		metric.WithDescription("API request latency by method, route pattern and status."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5),
	)
	if err != nil {
		logger.Warn("failed to create latency histogram", zap.Error(err))
		m.latency, _ = nop.Float64Histogram("")
	}

	m.openStreams, err = meter.Int64UpDownCounter(
		"pitchroom.feed.open_streams",
		metric.WithDescription("Conversation event streams currently held open by clients."),
		metric.WithUnit("{stream}"),
	)
	if err != nil {
		logger.Warn("failed to create open streams gauge", zap.Error(err))
		m.openStreams, _ = nop.Int64UpDownCounter("")
	}

	m.streamLife, err = meter.Float64Histogram(
		"pitchroom.feed.stream_duration_seconds",
		metric.WithDescription("How long clients kept an event stream open."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 10, 60, 300, 900, 3600, 14400),
	)
	if err != nil {
		logger.Warn("failed to create stream duration histogram", zap.Error(err))
		m.streamLife, _ = nop.Float64Histogram("")
	}

	m.streamEvents, err = meter.Int64Counter(
		"pitchroom.feed.events_sent_total",
		metric.WithDescription("Change events written to event streams, by event type."),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		logger.Warn("failed to create stream events counter", zap.Error(err))
		m.streamEvents, _ = nop.Int64Counter("")
	}
	return m
}

// middleware records request count and latency for every route except the
// event stream.
func (m *apiMetrics) middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.Path() == feedRoute {
			return next(c)
		}
		start := time.Now()
		err := next(c)

		attrs := metric.WithAttributes(
			attribute.String("method", c.Request().Method),
			attribute.String("route", routeLabel(c.Path())),
			attribute.Int("status", c.Response().Status),
		)
		ctx := c.Request().Context()
		m.requests.Add(ctx, 1, attrs)
		m.latency.Record(ctx, time.Since(start).Seconds(), attrs)
		return err
	}
}

// streamOpened counts an open event stream. The returned func ends the
// measurement and must be called once.
func (m *apiMetrics) streamOpened(ctx context.Context) func() {
	start := time.Now()
	m.openStreams.Add(ctx, 1)
	return func() {
		ctx := context.WithoutCancel(ctx)
		m.openStreams.Add(ctx, -1)
		m.streamLife.Record(ctx, time.Since(start).Seconds())
	}
}

// eventSent counts one frame written to an event stream.
func (m *apiMetrics) eventSent(ctx context.Context, eventType string) {
	m.streamEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("event", eventType)))
}

// routeLabel is the metric label for a matched route. Echo reports the
// pattern (/api/v1/messages/:id), so ids never become labels.
func routeLabel(path string) string {
	if path == "" {
		return "unmatched"
	}
	return path
}
