package chat

import (
	"context"
	"fmt"
)

// MessageWriter durably stores a message and returns the stored row with
// its author display joined.
type MessageWriter interface {
	WriteMessage(ctx context.Context, d Draft) (Message, error)
}

// MessageFetcher returns every message of a conversation, ascending by
// created_at, with author display joined.
type MessageFetcher interface {
	FetchMessages(ctx context.Context, conversationID string) ([]Message, error)
}

// AuthorLookup resolves an author id to its display record.
type AuthorLookup interface {
	LookupAuthor(ctx context.Context, authorID string) (Author, error)
}

// EventType is the kind of row change carried by a ChangeEvent.
type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	switch t {
	case EventInsert, EventUpdate, EventDelete:
		return true
	}
	return false
}

// ChangeEvent is one row-level change from the feed. Message carries the
// new row for inserts and updates; only Message.ID is set for deletes.
// Feed rows carry no author display.
type ChangeEvent struct {
	Type           EventType
	ConversationID string
	Message        Message
}

func (e ChangeEvent) String() string {
	return fmt.Sprintf("%s %s/%s", e.Type, e.ConversationID, e.Message.ID)
}

// Feed opens change-feed subscriptions scoped to one conversation.
//
// Subscribe returns once the subscription is acknowledged. Afterwards
// onStatus(nil) reports a re-acknowledgment (for example after a reconnect)
// and onStatus(err) reports an error or closure of the underlying channel.
type Feed interface {
	Subscribe(ctx context.Context, conversationID string, onStatus func(error)) (Subscription, error)
}

// Subscription is a live change-feed subscription. Events is closed after
// Unsubscribe or when the feed gives up on the subscription.
type Subscription interface {
	Events() <-chan ChangeEvent
	Unsubscribe() error
}

// Notice is a user-visible alert raised by the send path.
type Notice struct {
	ConversationID string
	TempID         string
	Text           string
	Err            error
}

// Notifier shows notices to the user.
type Notifier interface {
	Notify(n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

// Notify calls f(n).
func (f NotifierFunc) Notify(n Notice) { f(n) }

type nopNotifier struct{}

func (nopNotifier) Notify(Notice) {}
