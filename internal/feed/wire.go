package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/fyrsmithlabs/pitchroom/internal/chat"
)

// DefaultPrefix is the subject prefix used when none is configured.
const DefaultPrefix = "pitchroom"

// ErrInvalidConversationID is returned for ids that cannot be a subject token.
var ErrInvalidConversationID = errors.New("invalid conversation id")

var conversationIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ValidateConversationID checks that id is usable as a subject token.
func ValidateConversationID(id string) error {
	if !conversationIDRe.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidConversationID, id)
	}
	return nil
}

// Subject returns the subject for one event type in a conversation.
func Subject(prefix, conversationID string, t chat.EventType) string {
	return prefix + ".messages." + conversationID + "." + string(t)
}

// ConversationSubject matches every event type of a conversation.
func ConversationSubject(prefix, conversationID string) string {
	return prefix + ".messages." + conversationID + ".*"
}

// Row is a message row as carried on the wire.
type Row struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	AuthorID       string    `json:"author_id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// OldRow identifies a deleted row.
type OldRow struct {
	ID string `json:"id"`
}

// Envelope is the JSON payload of one change event.
type Envelope struct {
	EventType      chat.EventType `json:"event_type"`
	ConversationID string         `json:"conversation_id"`
	Row            *Row           `json:"row,omitempty"`
	Old            *OldRow        `json:"old,omitempty"`
}

// Encode renders ev as an Envelope.
func Encode(ev chat.ChangeEvent) ([]byte, error) {
	if !ev.Type.Valid() {
		return nil, fmt.Errorf("unknown event type %q", ev.Type)
	}
	env := Envelope{EventType: ev.Type, ConversationID: ev.ConversationID}
	if ev.Type == chat.EventDelete {
		env.Old = &OldRow{ID: ev.Message.ID}
	} else {
		m := ev.Message
		env.Row = &Row{
			ID:             m.ID,
			ConversationID: ev.ConversationID,
			AuthorID:       m.AuthorID,
			Content:        m.Content,
			CreatedAt:      m.CreatedAt.UTC(),
		}
	}
	return json.Marshal(env)
}

// Decode parses an Envelope back into a chat.ChangeEvent.
func Decode(data []byte) (chat.ChangeEvent, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return chat.ChangeEvent{}, fmt.Errorf("decoding change event: %w", err)
	}
	if !env.EventType.Valid() {
		return chat.ChangeEvent{}, fmt.Errorf("unknown event type %q", env.EventType)
	}

	ev := chat.ChangeEvent{Type: env.EventType, ConversationID: env.ConversationID}
	switch {
	case env.EventType == chat.EventDelete && env.Old != nil:
		ev.Message = chat.Message{ID: env.Old.ID, ConversationID: env.ConversationID}
	case env.EventType != chat.EventDelete && env.Row != nil:
		ev.Message = chat.Message{
			ID:             env.Row.ID,
			ConversationID: env.ConversationID,
			AuthorID:       env.Row.AuthorID,
			Content:        env.Row.Content,
			CreatedAt:      env.Row.CreatedAt,
		}
	default:
		return chat.ChangeEvent{}, fmt.Errorf("%s event without row", env.EventType)
	}
	if ev.Message.ID == "" {
		return chat.ChangeEvent{}, fmt.Errorf("%s event without id", env.EventType)
	}
	return ev, nil
}

// eventTypeFromSubject returns the last subject token.
func eventTypeFromSubject(subject string) chat.EventType {
	return chat.EventType(subject[strings.LastIndexByte(subject, '.')+1:])
}
