package chat

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// TempIDPrefix marks ids generated locally for unconfirmed messages.
// Durable ids never carry it.
const TempIDPrefix = "temp-"

// DefaultDisplayName is shown on the local user's placeholders when no
// display name is configured.
const DefaultDisplayName = "You"

// UnknownAuthor is substituted when an author cannot be resolved.
var UnknownAuthor = Author{Name: "Unknown"}

// Author is the denormalized display record of a message's sender.
type Author struct {
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Message is one chat utterance.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	AuthorID       string    `json:"author_id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
	Author         Author    `json:"author_display"`

	// Pending is true only for a local placeholder awaiting its durable write.
	Pending bool `json:"-"`
}

// Draft is the input of a durable message write.
type Draft struct {
	ConversationID string `json:"conversation_id"`
	AuthorID       string `json:"author_id"`
	Content        string `json:"content"`
}

// Identity is the local user sending messages.
type Identity struct {
	UserID      string
	DisplayName string
}

func (i Identity) displayName() string {
	if i.DisplayName == "" {
		return DefaultDisplayName
	}
	return i.DisplayName
}

// NewTempID returns a fresh placeholder id.
func NewTempID() string {
	return TempIDPrefix + uuid.NewString()
}

// IsTempID reports whether id was produced by NewTempID.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

// withAuthorFallback fills an empty author display with UnknownAuthor.
func withAuthorFallback(m Message) Message {
	if m.Author.Name == "" {
		m.Author = UnknownAuthor
	}
	return m
}
