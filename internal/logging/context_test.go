package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"
)

func TestContextFields_Empty(t *testing.T) {
	assert.Empty(t, ContextFields(context.Background()))
}

func TestContextFields_Tags(t *testing.T) {
	ctx := context.Background()
	ctx = WithConversationID(ctx, "c1")
	ctx = WithUserID(ctx, "u1")
	ctx = WithRequestID(ctx, "r1")

	got := map[string]string{}
	for _, f := range ContextFields(ctx) {
		got[f.Key] = f.String
	}
	assert.Equal(t, map[string]string{
		"conversation.id": "c1",
		"user.id":         "u1",
		"request.id":      "r1",
	}, got)
}

func TestContextFields_Span(t *testing.T) {
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	tl := NewTestLogger()
	tl.Info(ctx, "traced")
	tl.AssertField(t, "traced", "trace_id", traceID.String())
}

func TestFromContext(t *testing.T) {
	tl := NewTestLogger()
	ctx := WithLogger(context.Background(), tl.Logger)
	assert.Same(t, tl.Logger, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))
}
