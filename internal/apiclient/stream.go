package apiclient

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pitchroom/internal/chat"
	"github.com/fyrsmithlabs/pitchroom/internal/feed"
	"github.com/fyrsmithlabs/pitchroom/internal/logging"
)

// ErrStreamClosed is reported when the daemon ends an event stream.
var ErrStreamClosed = errors.New("event stream closed")

// maxEventLine bounds a single line of an event stream.
const maxEventLine = 1 << 20

// Subscribe implements chat.Feed over the daemon's event stream. It returns
// once the daemon has acknowledged the subscription. ctx bounds only the
// acknowledgment, and without a deadline the wait is capped at the client's
// ack timeout. The stream lives until Unsubscribe.
func (c *Client) Subscribe(ctx context.Context, conversationID string, onStatus func(error)) (chat.Subscription, error) {
	if err := feed.ValidateConversationID(conversationID); err != nil {
		return nil, err
	}
	if onStatus == nil {
		onStatus = func(error) {}
	}

	ackCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancelAck context.CancelFunc
		ackCtx, cancelAck = context.WithTimeout(ctx, c.ackTimeout)
		defer cancelAck()
	}

	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stopWatch := context.AfterFunc(ackCtx, cancel)

	req, err := c.newRequest(streamCtx, http.MethodGet, conversationPath(conversationID, "/feed"), nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		cancel()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if ackCtx.Err() != nil {
			err = ackCtx.Err()
		}
		return nil, fmt.Errorf("opening event stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		defer cancel()
		return nil, decodeError(resp)
	}

	sc := newEventScanner(resp.Body)
	first, err := readEvent(sc)
	if err == nil && first.name != feed.StreamEventReady {
		err = fmt.Errorf("unexpected %q event before ready", first.name)
	}
	if !stopWatch() && err == nil {
		err = ackCtx.Err()
	}
	if err != nil {
		resp.Body.Close()
		cancel()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if ackCtx.Err() != nil {
			err = ackCtx.Err()
		}
		return nil, fmt.Errorf("awaiting stream ready: %w", err)
	}

	sub := &streamSubscription{
		conversationID: conversationID,
		body:           resp.Body,
		cancel:         cancel,
		events:         make(chan chat.ChangeEvent, 64),
		done:           make(chan struct{}),
		onStatus:       onStatus,
		logger:         c.logger,
	}
	go sub.run(logging.WithConversationID(context.WithoutCancel(ctx), conversationID), sc)
	return sub, nil
}

type streamSubscription struct {
	conversationID string
	body           io.ReadCloser
	cancel         context.CancelFunc
	events         chan chat.ChangeEvent
	done           chan struct{}
	once           sync.Once
	onStatus       func(error)
	logger         *logging.Logger
}

func (s *streamSubscription) Events() <-chan chat.ChangeEvent { return s.events }

// Unsubscribe closes the stream. Events is closed shortly after.
func (s *streamSubscription) Unsubscribe() error {
	s.once.Do(func() {
		close(s.done)
		s.cancel()
	})
	return nil
}

func (s *streamSubscription) stopped() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *streamSubscription) run(ctx context.Context, sc *bufio.Scanner) {
	defer close(s.events)
	defer s.body.Close()

	for {
		ev, err := readEvent(sc)
		if err != nil {
			if errors.Is(err, bufio.ErrTooLong) {
				s.logger.Warn(ctx, "event stream line too long", zap.Int("limit", maxEventLine))
			}
			if !s.stopped() {
				s.onStatus(fmt.Errorf("%w: %v", ErrStreamClosed, err))
			}
			return
		}

		switch {
		case ev.name == feed.StreamEventStatus:
			var frame feed.StatusFrame
			if err := json.Unmarshal([]byte(ev.data), &frame); err != nil {
				s.logger.Warn(ctx, "dropping malformed status event", zap.Error(err))
				continue
			}
			if frame.Error != "" {
				s.onStatus(errors.New(frame.Error))
			} else {
				s.onStatus(nil)
			}
		case ev.name == feed.StreamEventClosed:
			if !s.stopped() {
				s.onStatus(ErrStreamClosed)
			}
			return
		case feed.IsChangeEvent(ev.name):
			change, err := feed.Decode([]byte(ev.data))
			if err != nil {
				s.logger.Warn(ctx, "dropping malformed change event", zap.Error(err))
				continue
			}
			if change.ConversationID != s.conversationID {
				s.logger.Warn(ctx, "dropping change event for another conversation", zap.Stringer("event", change))
				continue
			}
			select {
			case s.events <- change:
			case <-s.done:
				return
			}
		default:
			s.logger.Debug(ctx, "ignoring unknown stream event", zap.String("event", ev.name))
		}
	}
}

// sseEvent is one dispatched server-sent event.
type sseEvent struct {
	name string
	data string
}

// newEventScanner splits an event stream into lines of at most maxEventLine
// bytes. A longer line fails the scan with bufio.ErrTooLong.
func newEventScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxEventLine)
	return sc
}

// readEvent reads up to the next dispatched event, skipping comment lines.
// Multiple data lines are joined with newlines.
func readEvent(sc *bufio.Scanner) (sseEvent, error) {
	var (
		ev   sseEvent
		data []string
	)
	for {
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return sseEvent{}, err
			}
			return sseEvent{}, io.ErrUnexpectedEOF
		}
		line := sc.Text()

		if line == "" {
			if ev.name == "" && len(data) == 0 {
				continue
			}
			if ev.name == "" {
				ev.name = "message"
			}
			ev.data = strings.Join(data, "\n")
			return ev, nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			ev.name = value
		case "data":
			data = append(data, value)
		}
	}
}
