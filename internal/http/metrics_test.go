package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			out[md.Name] = md
		}
	}
	return out
}

func newTestMetrics() (*apiMetrics, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	return newAPIMetrics(mp.Meter(instrumentationName), nil), reader
}

func TestAPIMetrics_Middleware(t *testing.T) {
	m, reader := newTestMetrics()

	e := echo.New()
	e.Use(m.middleware)
	ok := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	e.GET("/api/v1/messages/:id", ok)
	e.GET("/health", ok)
	e.GET(feedRoute, ok)

	for _, path := range []string{
		"/api/v1/messages/a",
		"/api/v1/messages/b",
		"/health",
		"/api/v1/conversations/pitch-1/feed",
	} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	got := collect(t, reader)

	requests, ok2 := got["pitchroom.http.requests_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok2)
	routes := map[string]int64{}
	for _, dp := range requests.DataPoints {
		v, _ := dp.Attributes.Value(attribute.Key("route"))
		routes[v.AsString()] += dp.Value
	}
	assert.Equal(t, map[string]int64{"/api/v1/messages/:id": 2, "/health": 1}, routes,
		"ids never become labels and streams are not counted as requests")

	latency, ok2 := got["pitchroom.http.request_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok2)
	var total uint64
	for _, dp := range latency.DataPoints {
		total += dp.Count
	}
	assert.Equal(t, uint64(3), total)
}

func TestAPIMetrics_Streams(t *testing.T) {
	m, reader := newTestMetrics()
	ctx := context.Background()

	doneA := m.streamOpened(ctx)
	doneB := m.streamOpened(ctx)
	m.eventSent(ctx, "insert")
	m.eventSent(ctx, "insert")
	m.eventSent(ctx, "delete")
	doneA()

	got := collect(t, reader)

	open, ok := got["pitchroom.feed.open_streams"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, open.DataPoints, 1)
	assert.Equal(t, int64(1), open.DataPoints[0].Value)

	life, ok := got["pitchroom.feed.stream_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, life.DataPoints, 1)
	assert.Equal(t, uint64(1), life.DataPoints[0].Count)

	events, ok := got["pitchroom.feed.events_sent_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	byType := map[string]int64{}
	for _, dp := range events.DataPoints {
		v, _ := dp.Attributes.Value(attribute.Key("event"))
		byType[v.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{"insert": 2, "delete": 1}, byType)

	doneB()
}

func TestRouteLabel(t *testing.T) {
	assert.Equal(t, "unmatched", routeLabel(""))
	assert.Equal(t, "/health", routeLabel("/health"))
	assert.Equal(t, "/api/v1/conversations/:id/messages", routeLabel("/api/v1/conversations/:id/messages"))
}
