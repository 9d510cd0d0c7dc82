package tui

import "github.com/fyrsmithlabs/pitchroom/internal/chat"

// Notices is a chat.Notifier that queues notices for the UI. When the queue
// is full the newest notice is dropped.
type Notices struct {
	c chan chat.Notice
}

// NewNotices creates a Notices with room for size pending notices.
func NewNotices(size int) *Notices {
	if size < 1 {
		size = 1
	}
	return &Notices{c: make(chan chat.Notice, size)}
}

// Notify implements chat.Notifier.
func (n *Notices) Notify(notice chat.Notice) {
	select {
	case n.c <- notice:
	default:
	}
}

// C delivers queued notices.
func (n *Notices) C() <-chan chat.Notice { return n.c }
