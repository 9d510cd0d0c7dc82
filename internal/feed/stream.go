package feed

import "github.com/fyrsmithlabs/pitchroom/internal/chat"

// Event names used when change events are relayed as server-sent events.
// Change events use their chat.EventType as the event name and an Envelope
// as data.
const (
	// StreamEventReady is sent once the relay's subscription is acknowledged.
	StreamEventReady = "ready"

	// StreamEventStatus carries a StatusFrame.
	StreamEventStatus = "status"

	// StreamEventClosed is sent when the relay gives up on the subscription.
	StreamEventClosed = "closed"
)

// StatusFrame reports a change in the relay's broker connection. An empty
// Error means the subscription is acknowledged again.
type StatusFrame struct {
	Error string `json:"error,omitempty"`
}

// IsChangeEvent reports whether name is a change event name.
func IsChangeEvent(name string) bool {
	return chat.EventType(name).Valid()
}
