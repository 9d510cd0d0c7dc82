package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/pitchroom/internal/logging"
)

func newTestPipeline(t *testing.T, w *fakeWriter) (*Pipeline, *Store, *noticeRecorder, *logging.TestLogger) {
	t.Helper()
	store := NewStore()
	store.Switch("c1")
	notices := &noticeRecorder{}
	logger := logging.NewTestLogger()
	p := NewPipeline(store, w, notices, logger.Logger)
	p.now = func() time.Time { return at("10:00") }
	return p, store, notices, logger
}

func TestPipeline_SendConfirms(t *testing.T) {
	w := &fakeWriter{gate: make(chan struct{}), result: confirmAs("m1", at("10:00"), Author{Name: "Ada"})}
	p, store, notices, _ := newTestPipeline(t, w)

	o, ok := p.Begin("c1", Identity{UserID: "user-1"}, "hello")
	require.True(t, ok)

	ms := store.Messages()
	require.Len(t, ms, 1)
	assert.Equal(t, "hello", ms[0].Content)
	assert.True(t, ms[0].Pending)
	assert.True(t, IsTempID(ms[0].ID))
	assert.Equal(t, DefaultDisplayName, ms[0].Author.Name)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := o.Commit(context.Background())
		assert.NoError(t, err)
	}()
	close(w.gate)
	<-done

	ms = store.Messages()
	require.Len(t, ms, 1)
	assert.Equal(t, "m1", ms[0].ID)
	assert.Equal(t, "hello", ms[0].Content)
	assert.False(t, ms[0].Pending)
	assert.Empty(t, notices.All())
}

func TestPipeline_SendFailureRollsBack(t *testing.T) {
	w := &fakeWriter{}
	p, store, notices, logger := newTestPipeline(t, w)

	_, err := p.Send(context.Background(), "c1", Identity{UserID: "user-1"}, "hello")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSendFailed))
	assert.True(t, errors.Is(err, errBoom))
	assert.Zero(t, store.Len())

	got := notices.All()
	require.Len(t, got, 1)
	assert.Equal(t, SendFailedText, got[0].Text)
	assert.Equal(t, "c1", got[0].ConversationID)
	logger.AssertLogged(t, zapcore.ErrorLevel, "message send failed")
}

func TestPipeline_RollbackKeepsSameContentFromOtherSource(t *testing.T) {
	w := &fakeWriter{}
	p, store, _, _ := newTestPipeline(t, w)
	store.ApplyRemoteInsert(Message{ID: "x", ConversationID: "c1", AuthorID: "other", Content: "hello", CreatedAt: at("09:00")})

	_, _ = p.Send(context.Background(), "c1", Identity{UserID: "user-1"}, "hello")

	assert.Equal(t, []string{"x"}, ids(store.Messages()))
}

func TestPipeline_PreconditionsAreSilent(t *testing.T) {
	tests := []struct {
		name    string
		conv    string
		who     Identity
		content string
	}{
		{"blank content", "c1", Identity{UserID: "u"}, "   \n\t"},
		{"empty content", "c1", Identity{UserID: "u"}, ""},
		{"no conversation", "", Identity{UserID: "u"}, "hi"},
		{"no identity", "c1", Identity{}, "hi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &fakeWriter{}
			p, store, notices, _ := newTestPipeline(t, w)

			m, err := p.Send(context.Background(), tt.conv, tt.who, tt.content)

			assert.NoError(t, err)
			assert.Zero(t, m)
			assert.Zero(t, store.Len())
			assert.Zero(t, w.Calls())
			assert.Empty(t, notices.All())
		})
	}
}

func TestPipeline_CommitAtMostOnce(t *testing.T) {
	w := &fakeWriter{result: confirmAs("m1", at("10:00"), Author{Name: "Ada"})}
	p, _, _, _ := newTestPipeline(t, w)

	o, ok := p.Begin("c1", Identity{UserID: "u"}, "hi")
	require.True(t, ok)

	_, err := o.Commit(context.Background())
	require.NoError(t, err)
	_, err = o.Commit(context.Background())

	assert.ErrorIs(t, err, ErrAlreadyCommitted)
	assert.Equal(t, 1, w.Calls())
}

func TestPipeline_KeepsContentAsTyped(t *testing.T) {
	w := &fakeWriter{result: confirmAs("m1", at("10:00"), Author{Name: "Ada"})}
	p, _, _, _ := newTestPipeline(t, w)

	_, err := p.Send(context.Background(), "c1", Identity{UserID: "u"}, "  spaced  ")
	require.NoError(t, err)

	assert.Equal(t, "  spaced  ", w.calls[0].Content)
}

func TestPipeline_ConfirmedWithoutAuthorGetsPlaceholder(t *testing.T) {
	w := &fakeWriter{result: confirmAs("m1", at("10:00"), Author{})}
	p, store, _, _ := newTestPipeline(t, w)

	_, err := p.Send(context.Background(), "c1", Identity{UserID: "u", DisplayName: "Ada"}, "hi")
	require.NoError(t, err)

	got, ok := store.Get("m1")
	require.True(t, ok)
	assert.Equal(t, UnknownAuthor, got.Author)
}

func TestPipeline_EchoBeforeConfirmationLeavesOneMessage(t *testing.T) {
	w := &fakeWriter{gate: make(chan struct{}), result: confirmAs("C", at("10:00"), Author{Name: "Ada"})}
	p, store, _, _ := newTestPipeline(t, w)

	o, _ := p.Begin("c1", Identity{UserID: "u"}, "hi")
	store.ApplyRemoteInsert(Message{ID: "C", ConversationID: "c1", AuthorID: "u", Content: "hi", CreatedAt: at("10:00")})
	require.Equal(t, []string{"C"}, ids(store.Messages()))

	close(w.gate)
	_, err := o.Commit(context.Background())
	require.NoError(t, err)

	ms := store.Messages()
	require.Len(t, ms, 1)
	assert.Equal(t, "C", ms[0].ID)
	assert.False(t, ms[0].Pending)
	assert.False(t, store.Has(o.TempID()))
}

func TestPipeline_ConfirmationAfterSwitchIsDropped(t *testing.T) {
	w := &fakeWriter{gate: make(chan struct{}), result: confirmAs("C", at("10:00"), Author{Name: "Ada"})}
	p, store, _, _ := newTestPipeline(t, w)

	o, _ := p.Begin("c1", Identity{UserID: "u"}, "hi")
	store.Switch("c2")
	close(w.gate)
	_, err := o.Commit(context.Background())

	require.NoError(t, err)
	assert.Zero(t, store.Len())
}
