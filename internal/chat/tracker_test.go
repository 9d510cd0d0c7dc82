package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTracker_Lifecycle(t *testing.T) {
	tr := NewTracker()
	var seen []Status
	tr.Watch(func(s Status) { seen = append(seen, s) })

	assert.Equal(t, StatusDisconnected, tr.Status())
	assert.True(t, tr.Connecting())
	assert.True(t, tr.Connected())
	assert.True(t, tr.Disconnected())
	assert.True(t, tr.Connecting())
	assert.True(t, tr.Disconnected())

	assert.Equal(t, []Status{
		StatusConnecting, StatusConnected, StatusDisconnected,
		StatusConnecting, StatusDisconnected,
	}, seen)
}

func TestTracker_ConnectedRequiresConnecting(t *testing.T) {
	tr := NewTracker()

	assert.False(t, tr.Connected())
	assert.Equal(t, StatusDisconnected, tr.Status())
}

func TestTracker_RepeatedStateIsNoop(t *testing.T) {
	tr := NewTracker()
	calls := 0
	tr.Watch(func(Status) { calls++ })

	assert.False(t, tr.Disconnected())
	tr.Connecting()
	assert.False(t, tr.Connecting())

	assert.Equal(t, 1, calls)
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "Disconnected", StatusDisconnected.String())
	assert.Equal(t, "Connecting...", StatusConnecting.String())
	assert.Equal(t, "Connected", StatusConnected.String())
}
