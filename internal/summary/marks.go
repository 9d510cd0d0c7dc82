package summary

import (
	"sync"

	"github.com/fyrsmithlabs/pitchroom/internal/chat"
)

// Marks is the set of messages flagged for a summary, in marking order.
type Marks struct {
	mu       sync.Mutex
	messages []chat.Message
}

// Toggle marks m, or unmarks it if it is already marked. It reports whether
// m is marked afterwards.
func (k *Marks) Toggle(m chat.Message) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	for i, marked := range k.messages {
		if marked.ID == m.ID {
			k.messages = append(k.messages[:i], k.messages[i+1:]...)
			return false
		}
	}
	k.messages = append(k.messages, m)
	return true
}

// Contains reports whether the message with id is marked.
func (k *Marks) Contains(id string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, m := range k.messages {
		if m.ID == id {
			return true
		}
	}
	return false
}

// List returns the marked messages in marking order.
func (k *Marks) List() []chat.Message {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]chat.Message(nil), k.messages...)
}

// Len returns the number of marked messages.
func (k *Marks) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.messages)
}

// Clear unmarks everything.
func (k *Marks) Clear() {
	k.mu.Lock()
	k.messages = nil
	k.mu.Unlock()
}
