package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pitchroom/internal/logging"
)

// ErrListenerStopped is returned by Start when Stop ran while the
// subscription was being opened.
var ErrListenerStopped = errors.New("listener stopped during subscribe")

// EventHandler applies one change event. Calls are sequential, in arrival order.
type EventHandler func(ctx context.Context, ev ChangeEvent)

// Listener owns at most one live change-feed subscription and reports its
// state to a Tracker.
type Listener struct {
	feed    Feed
	tracker *Tracker
	logger  *logging.Logger

	// generation increases on every Start and Stop; callbacks and events
	// from an older generation are dropped.
	generation atomic.Uint64

	mu     sync.Mutex
	sub    Subscription
	cancel context.CancelFunc
}

// NewListener creates a Listener reading from feed.
func NewListener(feed Feed, tracker *Tracker, logger *logging.Logger) *Listener {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Listener{feed: feed, tracker: tracker, logger: logger}
}

// Start tears down any previous subscription, then subscribes to
// conversationID. The tracker goes connecting before the attempt and
// connected on acknowledgment. A subscribe error leaves it disconnected and
// is returned for logging; it is never fatal to the session.
//
// Events for other conversations are dropped before reaching handle.
func (l *Listener) Start(ctx context.Context, conversationID string, handle EventHandler) error {
	l.Stop()
	gen := l.generation.Add(1)
	ctx = logging.WithConversationID(ctx, conversationID)

	l.tracker.Connecting()
	sub, err := l.feed.Subscribe(ctx, conversationID, l.statusFunc(ctx, gen))
	if err != nil {
		if l.current(gen) {
			l.tracker.Disconnected()
		}
		return fmt.Errorf("subscribing to %s: %w", conversationID, err)
	}

	l.mu.Lock()
	if !l.current(gen) {
		l.mu.Unlock()
		if err := sub.Unsubscribe(); err != nil {
			l.logger.Warn(ctx, "unsubscribe after stop failed", zap.Error(err))
		}
		return ErrListenerStopped
	}
	pumpCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	l.sub, l.cancel = sub, cancel
	l.mu.Unlock()

	l.tracker.Connected()
	l.logger.Debug(ctx, "change-feed subscribed")

	go l.pump(pumpCtx, gen, conversationID, sub, handle)
	return nil
}

// Stop unsubscribes and marks the tracker disconnected. It does not wait
// for an in-flight handler call; that call sees a newer generation and its
// effects are dropped by the store scope.
func (l *Listener) Stop() {
	l.generation.Add(1)

	l.mu.Lock()
	sub, cancel := l.sub, l.cancel
	l.sub, l.cancel = nil, nil
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if sub != nil {
		if err := sub.Unsubscribe(); err != nil {
			l.logger.Warn(context.Background(), "change-feed unsubscribe failed", zap.Error(err))
		}
	}
	l.tracker.Disconnected()
}

func (l *Listener) current(gen uint64) bool {
	return l.generation.Load() == gen
}

func (l *Listener) statusFunc(ctx context.Context, gen uint64) func(error) {
	return func(err error) {
		if !l.current(gen) {
			return
		}
		if err != nil {
			l.tracker.Disconnected()
			l.logger.Warn(ctx, "change-feed connection lost", zap.Error(err))
			return
		}
		l.tracker.Connecting()
		if l.tracker.Connected() {
			l.logger.Info(ctx, "change-feed re-established")
		}
	}
}

func (l *Listener) pump(ctx context.Context, gen uint64, conversationID string, sub Subscription, handle EventHandler) {
	events := sub.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				if l.current(gen) {
					l.tracker.Disconnected()
					l.logger.Warn(ctx, "change-feed channel closed")
				}
				return
			}
			if !l.current(gen) || ev.ConversationID != conversationID {
				l.logger.Trace(ctx, "dropping stale change event", zap.Stringer("event", ev))
				continue
			}
			handle(ctx, ev)
		}
	}
}
