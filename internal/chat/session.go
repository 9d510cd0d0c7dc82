package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pitchroom/internal/logging"
)

// ErrSessionClosed is returned by Select after Close.
var ErrSessionClosed = errors.New("chat session closed")

// Deps are the collaborators of a Session.
type Deps struct {
	Writer   MessageWriter
	Fetcher  MessageFetcher
	Authors  AuthorLookup
	Feed     Feed
	Notifier Notifier
	Logger   *logging.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithClock overrides the clock used for placeholder timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.pipeline.now = now }
}

// Session is the chat view's handle on one selected conversation at a time.
type Session struct {
	deps     Deps
	logger   *logging.Logger
	store    *Store
	tracker  *Tracker
	listener *Listener
	pipeline *Pipeline
	authors  *authorCache
	changes  chan struct{}

	// mu serializes Select and Close.
	mu     sync.Mutex
	closed bool
}

// NewSession wires the store, tracker, listener and pipeline together.
func NewSession(deps Deps, opts ...Option) *Session {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.Named("chat")

	store := NewStore()
	tracker := NewTracker()
	s := &Session{
		deps:     deps,
		logger:   logger,
		store:    store,
		tracker:  tracker,
		listener: NewListener(deps.Feed, tracker, logger),
		pipeline: NewPipeline(store, deps.Writer, deps.Notifier, logger),
		authors:  newAuthorCache(deps.Authors, logger),
		changes:  make(chan struct{}, 1),
	}
	store.OnChange(s.signal)
	tracker.Watch(func(Status) { s.signal() })

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select makes conversationID the active conversation. The previous
// subscription is torn down and the store cleared before anything of the
// new conversation is shown. The new subscription is opened before the
// initial fetch so no insert falls between the two.
//
// Subscription and fetch failures are logged, never returned: the store
// stays as loaded and the status shows disconnected. An empty id deselects.
func (s *Session) Select(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}

	s.listener.Stop()
	s.store.Switch(conversationID)
	s.authors.reset()
	if conversationID == "" {
		return nil
	}

	ctx = logging.WithConversationID(ctx, conversationID)
	if s.deps.Feed != nil {
		if err := s.listener.Start(ctx, conversationID, s.handleEvent); err != nil {
			s.logger.Warn(ctx, "change-feed subscription failed", zap.Error(err))
		}
	}

	if s.deps.Fetcher == nil {
		return nil
	}
	initial, err := s.deps.Fetcher.FetchMessages(ctx, conversationID)
	if err != nil {
		s.logger.Error(ctx, "initial message load failed", zap.Error(err))
		return nil
	}
	if s.store.Load(conversationID, initial) {
		s.logger.Debug(ctx, "messages loaded", zap.Int("count", len(initial)))
	}
	return nil
}

// Begin starts an optimistic send in the active conversation. The caller
// may clear its compose box as soon as Begin returns.
func (s *Session) Begin(who Identity, content string) (*Outgoing, bool) {
	return s.pipeline.Begin(s.store.Conversation(), who, content)
}

// Send runs a full optimistic send in the active conversation.
func (s *Session) Send(ctx context.Context, who Identity, content string) (Message, error) {
	o, ok := s.Begin(who, content)
	if !ok {
		return Message{}, nil
	}
	return o.Commit(ctx)
}

// Messages returns the visible messages, oldest first.
func (s *Session) Messages() []Message { return s.store.Messages() }

// Status returns the change-feed connection state.
func (s *Session) Status() Status { return s.tracker.Status() }

// Conversation returns the active conversation id, or "".
func (s *Session) Conversation() string { return s.store.Conversation() }

// Changes delivers a coalesced signal after any message or status change.
// The channel is never closed.
func (s *Session) Changes() <-chan struct{} { return s.changes }

// Close stops the listener and clears the store. Further Selects fail.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.listener.Stop()
	s.store.Switch("")
}

func (s *Session) signal() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

func (s *Session) handleEvent(ctx context.Context, ev ChangeEvent) {
	if ev.ConversationID != s.store.Conversation() {
		s.logger.Trace(ctx, "dropping event for inactive conversation", zap.Stringer("event", ev))
		return
	}
	m := ev.Message
	m.ConversationID = ev.ConversationID

	switch ev.Type {
	case EventInsert:
		s.applyInsert(ctx, m)
	case EventUpdate:
		if !s.store.ApplyRemoteUpdate(m) {
			s.logger.Trace(ctx, "update for unknown message", zap.String("message.id", m.ID))
		}
	case EventDelete:
		s.store.ApplyRemoteDelete(ev.ConversationID, m.ID)
	default:
		s.logger.Warn(ctx, "unknown change event type", zap.String("type", string(ev.Type)))
	}
}

func (s *Session) applyInsert(ctx context.Context, m Message) {
	if s.store.Has(m.ID) {
		s.logger.Trace(ctx, "duplicate insert ignored", zap.String("message.id", m.ID))
		return
	}
	if m.Author.Name == "" {
		m.Author = s.authors.resolve(ctx, m.AuthorID)
		// The sender's own placeholder is the fallback when the profile
		// cannot be read.
		if m.Author == UnknownAuthor {
			if p, ok := s.store.MatchPending(m); ok {
				m.Author = p.Author
			}
		}
	}
	s.store.ApplyRemoteInsert(m)
}
