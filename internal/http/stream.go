package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pitchroom/internal/feed"
	"github.com/fyrsmithlabs/pitchroom/internal/logging"
)

// handleFeed streams a conversation's change events via Server-Sent Events.
//
// The stream opens with a "ready" event once the underlying subscription is
// acknowledged, then relays every change event with its type as the event
// name and the wire envelope as data. Broker connection changes are sent as
// "status" events. A comment frame is written every heartbeat interval.
//
// Example:
//
//	GET /api/v1/conversations/pitch-42/feed
//
//	event: ready
//	data: {}
//
//	event: insert
//	data: {"event_type":"insert","conversation_id":"pitch-42","row":{...}}
func (s *Server) handleFeed(c echo.Context) error {
	conv, err := conversationParam(c)
	if err != nil {
		return err
	}
	if s.feed == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "change feed unavailable")
	}

	ctx := logging.WithConversationID(c.Request().Context(), conv)
	status := make(chan error, 16)
	sub, err := s.feed.Subscribe(ctx, conv, func(err error) {
		select {
		case status <- err:
		default:
			s.logger.Warn(ctx, "dropping feed status update", zap.Error(err))
		}
	})
	if err != nil {
		s.logger.Warn(ctx, "feed subscription failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusServiceUnavailable, "change feed unavailable")
	}
	defer func() {
		_ = sub.Unsubscribe()
	}()

	// Set SSE headers
	h := c.Response().Header()
	h.Set(echo.HeaderContentType, "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no") // Disable nginx buffering
	c.Response().WriteHeader(http.StatusOK)

	w := &eventWriter{res: c.Response()}
	w.event(feed.StreamEventReady, []byte("{}"))

	s.logger.Debug(ctx, "feed stream opened")
	defer s.logger.Debug(ctx, "feed stream closed")
	defer s.metrics.streamOpened(ctx)()

	ticker := time.NewTicker(s.config.HeartbeatInterval)
	defer ticker.Stop()

	for w.err == nil {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.Events():
			if !ok {
				w.event(feed.StreamEventClosed, []byte("{}"))
				return nil
			}
			data, err := feed.Encode(ev)
			if err != nil {
				s.logger.Warn(ctx, "skipping unencodable change event", zap.Stringer("event", ev), zap.Error(err))
				continue
			}
			w.event(string(ev.Type), data)
			s.metrics.eventSent(ctx, string(ev.Type))
		case err := <-status:
			frame := feed.StatusFrame{}
			if err != nil {
				frame.Error = err.Error()
			}
			data, _ := json.Marshal(frame)
			w.event(feed.StreamEventStatus, data)
		case <-ticker.C:
			w.comment("heartbeat")
		}
	}
	s.logger.Debug(ctx, "feed client went away", zap.Error(w.err))
	return nil
}

// eventWriter writes SSE frames and remembers the first write error.
type eventWriter struct {
	res *echo.Response
	err error
}

func (w *eventWriter) event(name string, data []byte) {
	if w.err != nil {
		return
	}
	_, w.err = fmt.Fprintf(w.res, "event: %s\ndata: %s\n\n", name, data)
	w.res.Flush()
}

func (w *eventWriter) comment(text string) {
	if w.err != nil {
		return
	}
	_, w.err = fmt.Fprintf(w.res, ": %s\n\n", text)
	w.res.Flush()
}
