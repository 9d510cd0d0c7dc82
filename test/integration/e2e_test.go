package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/pitchroom/internal/chat"
)

const (
	waitFor = 5 * time.Second
	tick    = 20 * time.Millisecond
)

func contents(msgs []chat.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content
	}
	return out
}

func noPending(msgs []chat.Message) bool {
	for _, m := range msgs {
		if m.Pending {
			return false
		}
	}
	return true
}

// TestE2E_PitchConversation validates two participants converging on one
// conversation:
// 1. Both sessions connect
// 2. Each sends a message; both views show both, in order, with no placeholders
// 3. An edit propagates to the other participant
// 4. A delete propagates to the other participant
func TestE2E_PitchConversation(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E test in short mode")
	}

	ctx := context.Background()
	url := createTestDaemon(t)
	ana := joinConversation(t, url, "ana", "Ana", "pitch-1")
	ben := joinConversation(t, url, "ben", "Ben", "pitch-1")

	t.Run("connect", func(t *testing.T) {
		for _, p := range []*participant{ana, ben} {
			require.Eventually(t, func() bool {
				return p.session.Status() == chat.StatusConnected
			}, waitFor, tick, "%s should connect", p.identity.UserID)
		}
	})

	t.Run("send converges", func(t *testing.T) {
		first, err := ana.session.Send(ctx, ana.identity, "a marketplace for pitch decks")
		require.NoError(t, err)
		assert.False(t, first.Pending)

		require.Eventually(t, func() bool {
			return len(ben.session.Messages()) == 1
		}, waitFor, tick, "Ben should receive Ana's message")

		_, err = ben.session.Send(ctx, ben.identity, "who pays?")
		require.NoError(t, err)

		want := []string{"a marketplace for pitch decks", "who pays?"}
		for _, p := range []*participant{ana, ben} {
			require.Eventually(t, func() bool {
				msgs := p.session.Messages()
				return assert.ObjectsAreEqual(want, contents(msgs)) && noPending(msgs)
			}, waitFor, tick, "%s should converge", p.identity.UserID)
		}

		got := ben.session.Messages()[0]
		assert.Equal(t, "ana", got.AuthorID)
		assert.Equal(t, "Ana", got.Author.Name)
	})

	t.Run("edit propagates", func(t *testing.T) {
		mine := ben.session.Messages()[1]
		_, err := ben.client.EditMessage(ctx, mine.ID, "who pays, and how much?")
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			msgs := ana.session.Messages()
			return len(msgs) == 2 && msgs[1].Content == "who pays, and how much?"
		}, waitFor, tick, "Ana should see Ben's edit")
	})

	t.Run("delete propagates", func(t *testing.T) {
		mine := ana.session.Messages()[0]
		require.NoError(t, ana.client.DeleteMessage(ctx, mine.ID))

		require.Eventually(t, func() bool {
			msgs := ben.session.Messages()
			return len(msgs) == 1 && msgs[0].AuthorID == "ben"
		}, waitFor, tick, "Ben should see Ana's delete")
	})
}

// TestE2E_ConversationIsolation validates that events never cross
// conversations.
func TestE2E_ConversationIsolation(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E test in short mode")
	}

	ctx := context.Background()
	url := createTestDaemon(t)
	ana := joinConversation(t, url, "ana", "Ana", "pitch-1")
	ben := joinConversation(t, url, "ben", "Ben", "pitch-2")

	require.Eventually(t, func() bool {
		return ana.session.Status() == chat.StatusConnected && ben.session.Status() == chat.StatusConnected
	}, waitFor, tick)

	_, err := ben.session.Send(ctx, ben.identity, "only in pitch-2")
	require.NoError(t, err)
	_, err = ana.session.Send(ctx, ana.identity, "only in pitch-1")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{"only in pitch-1"}, contents(ana.session.Messages()))
	}, waitFor, tick)
	assert.Equal(t, []string{"only in pitch-2"}, contents(ben.session.Messages()))
}

// TestE2E_LateJoinerSeesHistory validates that selecting a conversation
// loads what was written before the subscription existed.
func TestE2E_LateJoinerSeesHistory(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E test in short mode")
	}

	ctx := context.Background()
	url := createTestDaemon(t)
	ana := joinConversation(t, url, "ana", "Ana", "pitch-1")

	for _, text := range []string{"one", "two", "three"} {
		_, err := ana.session.Send(ctx, ana.identity, text)
		require.NoError(t, err)
	}

	ben := joinConversation(t, url, "ben", "Ben", "pitch-1")
	assert.Equal(t, []string{"one", "two", "three"}, contents(ben.session.Messages()))
	assert.True(t, noPending(ben.session.Messages()))
}
