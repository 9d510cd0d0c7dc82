package chat

import (
	"context"
	"errors"
	"sync"
	"time"
)

var errBoom = errors.New("boom")

func at(hhmm string) time.Time {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		panic(err)
	}
	return t.AddDate(2024, 0, 0).UTC()
}

type fakeWriter struct {
	mu     sync.Mutex
	calls  []Draft
	result func(d Draft) (Message, error)
	gate   chan struct{}
}

func (w *fakeWriter) WriteMessage(ctx context.Context, d Draft) (Message, error) {
	w.mu.Lock()
	w.calls = append(w.calls, d)
	w.mu.Unlock()
	if w.gate != nil {
		<-w.gate
	}
	if w.result == nil {
		return Message{}, errBoom
	}
	return w.result(d)
}

func (w *fakeWriter) Calls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.calls)
}

func confirmAs(id string, createdAt time.Time, author Author) func(Draft) (Message, error) {
	return func(d Draft) (Message, error) {
		return Message{
			ID:             id,
			ConversationID: d.ConversationID,
			AuthorID:       d.AuthorID,
			Content:        d.Content,
			CreatedAt:      createdAt,
			Author:         author,
		}, nil
	}
}

type fakeFetcher struct {
	messages map[string][]Message
	err      error
}

func (f *fakeFetcher) FetchMessages(ctx context.Context, conversationID string) ([]Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	return append([]Message(nil), f.messages[conversationID]...), nil
}

type fakeAuthors struct {
	mu      sync.Mutex
	authors map[string]Author
	calls   map[string]int
	err     error
}

func newFakeAuthors(authors map[string]Author) *fakeAuthors {
	return &fakeAuthors{authors: authors, calls: make(map[string]int)}
}

func (a *fakeAuthors) LookupAuthor(ctx context.Context, id string) (Author, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls[id]++
	if a.err != nil {
		return Author{}, a.err
	}
	au, ok := a.authors[id]
	if !ok {
		return Author{}, errors.New("no such user")
	}
	return au, nil
}

func (a *fakeAuthors) Calls(id string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[id]
}

type fakeSub struct {
	conversationID string
	events         chan ChangeEvent
	onStatus       func(error)

	mu           sync.Mutex
	unsubscribed bool
}

func (s *fakeSub) Events() <-chan ChangeEvent { return s.events }

func (s *fakeSub) Unsubscribe() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.unsubscribed {
		s.unsubscribed = true
		close(s.events)
	}
	return nil
}

func (s *fakeSub) Unsubscribed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unsubscribed
}

// emit delivers ev unless the subscription is gone.
func (s *fakeSub) emit(ev ChangeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.unsubscribed {
		s.events <- ev
	}
}

type fakeFeed struct {
	mu   sync.Mutex
	subs []*fakeSub
	err  error
}

func (f *fakeFeed) Subscribe(ctx context.Context, conversationID string, onStatus func(error)) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	sub := &fakeSub{
		conversationID: conversationID,
		events:         make(chan ChangeEvent, 16),
		onStatus:       onStatus,
	}
	f.subs = append(f.subs, sub)
	return sub, nil
}

func (f *fakeFeed) last() *fakeSub {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.subs) == 0 {
		return nil
	}
	return f.subs[len(f.subs)-1]
}

func (f *fakeFeed) all() []*fakeSub {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeSub(nil), f.subs...)
}

type noticeRecorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *noticeRecorder) Notify(n Notice) {
	r.mu.Lock()
	r.notices = append(r.notices, n)
	r.mu.Unlock()
}

func (r *noticeRecorder) All() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}
