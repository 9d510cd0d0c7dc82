package tui

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/pitchroom/internal/chat"
)

// FormatTimestamp formats t as "15:04" on the same day as now and as
// "Jan 2 15:04" otherwise, in now's location.
func FormatTimestamp(t, now time.Time) string {
	t = t.In(now.Location())
	y1, m1, d1 := t.Date()
	y2, m2, d2 := now.Date()
	if y1 == y2 && m1 == m2 && d1 == d2 {
		return t.Format("15:04")
	}
	return t.Format("Jan 2 15:04")
}

// FormatCount formats a message count as "1 message" or "N messages".
func FormatCount(n int) string {
	if n == 1 {
		return "1 message"
	}
	return fmt.Sprintf("%d messages", n)
}

// statusDot renders the connection status as a colored dot and label.
func statusDot(s chat.Status) string {
	switch s {
	case chat.StatusConnected:
		return connectedStyle.Render("●") + " " + s.String()
	case chat.StatusConnecting:
		return connectingStyle.Render("●") + " " + s.String()
	default:
		return disconnectedStyle.Render("●") + " " + s.String()
	}
}
