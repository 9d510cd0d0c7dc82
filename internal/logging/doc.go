// Package logging provides structured logging for pitchroom.
//
// Logger wraps Zap with:
//   - a Trace level (-2, below Debug) for per-event chat feed detail
//   - stdout and optional OpenTelemetry output
//   - automatic context fields (trace_id, conversation.id, user.id, request.id)
//   - field-name and pattern based secret redaction
//   - level-aware sampling (errors are never sampled)
//
// Usage:
//
//	logger, err := logging.NewLogger(logging.NewDefaultConfig(), nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithConversationID(ctx, "proj-42")
//	logger.Info(ctx, "message stored", zap.String("message.id", id))
//
// Tests use NewTestLogger and its Assert helpers.
package logging
