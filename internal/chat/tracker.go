package chat

import "sync"

// Status is the change-feed connection state shown to the user.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
)

// String returns the display label.
func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "Connecting..."
	case StatusConnected:
		return "Connected"
	default:
		return "Disconnected"
	}
}

// Tracker holds the current Status. It starts disconnected and has no
// terminal state. Connected is reachable only from Connecting.
type Tracker struct {
	mu       sync.Mutex
	status   Status
	watchers []func(Status)
}

// NewTracker returns a disconnected tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Status returns the current state.
func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Watch registers fn to run on every transition, in transition order.
// fn runs under the tracker lock and must not call back into the Tracker.
func (t *Tracker) Watch(fn func(Status)) {
	t.mu.Lock()
	t.watchers = append(t.watchers, fn)
	t.mu.Unlock()
}

// Connecting marks the start of a subscription attempt.
func (t *Tracker) Connecting() bool {
	return t.transition(StatusConnecting)
}

// Connected marks a subscription acknowledgment. It is refused unless the
// tracker is connecting.
func (t *Tracker) Connected() bool {
	return t.transition(StatusConnected)
}

// Disconnected marks an error, teardown or channel closure.
func (t *Tracker) Disconnected() bool {
	return t.transition(StatusDisconnected)
}

func (t *Tracker) transition(to Status) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status == to {
		return false
	}
	if to == StatusConnected && t.status != StatusConnecting {
		return false
	}
	t.status = to
	for _, fn := range t.watchers {
		fn(to)
	}
	return true
}
