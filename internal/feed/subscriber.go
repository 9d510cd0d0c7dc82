package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pitchroom/internal/chat"
	"github.com/fyrsmithlabs/pitchroom/internal/logging"
)

// DefaultAckTimeout bounds the subscription acknowledgment when the caller's
// context has no deadline.
const DefaultAckTimeout = 5 * time.Second

// ErrDisconnected is reported to subscribers when the broker connection
// drops without a specific error.
var ErrDisconnected = errors.New("change feed disconnected")

// Subscriber opens conversation-scoped subscriptions on a shared NATS
// connection. It installs the connection's disconnect, reconnect, closed
// and async error handlers and fans them out to every live subscription.
type Subscriber struct {
	nc     *nats.Conn
	prefix string
	logger *logging.Logger

	mu   sync.Mutex
	subs map[*subscription]struct{}
}

// NewSubscriber wraps nc. An empty prefix uses DefaultPrefix.
func NewSubscriber(nc *nats.Conn, prefix string, logger *logging.Logger) *Subscriber {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Subscriber{nc: nc, prefix: prefix, logger: logger, subs: make(map[*subscription]struct{})}

	nc.SetDisconnectErrHandler(func(_ *nats.Conn, err error) {
		if err == nil {
			err = ErrDisconnected
		}
		s.broadcast(err)
	})
	nc.SetReconnectHandler(func(*nats.Conn) {
		s.broadcast(nil)
	})
	nc.SetClosedHandler(func(*nats.Conn) {
		s.broadcast(nats.ErrConnectionClosed)
		s.closeAll()
	})
	nc.SetErrorHandler(func(_ *nats.Conn, ns *nats.Subscription, err error) {
		s.reportAsync(ns, err)
	})
	return s
}

// Subscribe implements chat.Feed. It returns once the broker has processed
// the subscription.
func (s *Subscriber) Subscribe(ctx context.Context, conversationID string, onStatus func(error)) (chat.Subscription, error) {
	if err := ValidateConversationID(conversationID); err != nil {
		return nil, err
	}
	if onStatus == nil {
		onStatus = func(error) {}
	}

	msgs := make(chan *nats.Msg, 64)
	ns, err := s.nc.ChanSubscribe(ConversationSubject(s.prefix, conversationID), msgs)
	if err != nil {
		return nil, fmt.Errorf("subscribing: %w", err)
	}

	ackCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ackCtx, cancel = context.WithTimeout(ctx, DefaultAckTimeout)
		defer cancel()
	}
	if err := s.nc.FlushWithContext(ackCtx); err != nil {
		_ = ns.Unsubscribe()
		return nil, fmt.Errorf("awaiting subscription ack: %w", err)
	}

	sub := &subscription{
		owner:          s,
		conversationID: conversationID,
		ns:             ns,
		msgs:           msgs,
		events:         make(chan chat.ChangeEvent, 64),
		done:           make(chan struct{}),
		onStatus:       onStatus,
	}
	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	go sub.run(logging.WithConversationID(context.WithoutCancel(ctx), conversationID))
	return sub, nil
}

func (s *Subscriber) snapshot() []*subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*subscription, 0, len(s.subs))
	for sub := range s.subs {
		out = append(out, sub)
	}
	return out
}

func (s *Subscriber) broadcast(err error) {
	for _, sub := range s.snapshot() {
		sub.onStatus(err)
	}
}

func (s *Subscriber) reportAsync(ns *nats.Subscription, err error) {
	s.logger.Warn(context.Background(), "nats async error", zap.Error(err))
	if ns == nil {
		return
	}
	for _, sub := range s.snapshot() {
		if sub.ns == ns {
			sub.onStatus(err)
		}
	}
}

func (s *Subscriber) closeAll() {
	for _, sub := range s.snapshot() {
		sub.stop()
	}
}

func (s *Subscriber) forget(sub *subscription) {
	s.mu.Lock()
	delete(s.subs, sub)
	s.mu.Unlock()
}

type subscription struct {
	owner          *Subscriber
	conversationID string
	ns             *nats.Subscription
	msgs           chan *nats.Msg
	events         chan chat.ChangeEvent
	done           chan struct{}
	once           sync.Once
	onStatus       func(error)
}

func (s *subscription) Events() <-chan chat.ChangeEvent { return s.events }

// Unsubscribe stops delivery. Events is closed shortly after.
func (s *subscription) Unsubscribe() error {
	var err error
	s.once.Do(func() {
		s.owner.forget(s)
		close(s.done)
		if uerr := s.ns.Unsubscribe(); uerr != nil && !errors.Is(uerr, nats.ErrConnectionClosed) {
			err = uerr
		}
	})
	return err
}

func (s *subscription) stop() {
	_ = s.Unsubscribe()
}

func (s *subscription) run(ctx context.Context) {
	defer close(s.events)
	logger := s.owner.logger

	for {
		select {
		case <-s.done:
			return
		case msg := <-s.msgs:
			ev, err := Decode(msg.Data)
			if err != nil {
				logger.Warn(ctx, "dropping malformed change event",
					zap.String("subject", msg.Subject), zap.Error(err))
				continue
			}
			if ev.Type != eventTypeFromSubject(msg.Subject) || ev.ConversationID != s.conversationID {
				logger.Warn(ctx, "dropping change event with mismatched subject",
					zap.String("subject", msg.Subject), zap.Stringer("event", ev))
				continue
			}
			select {
			case s.events <- ev:
			case <-s.done:
				return
			}
		}
	}
}
