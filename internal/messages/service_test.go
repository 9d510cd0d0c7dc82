package messages

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/pitchroom/internal/chat"
	"github.com/fyrsmithlabs/pitchroom/internal/logging"
	"github.com/fyrsmithlabs/pitchroom/internal/storage"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []chat.ChangeEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev chat.ChangeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func newTestService(t *testing.T, pub Publisher) (*Service, *storage.Store, *logging.TestLogger) {
	t.Helper()
	store, err := storage.Open(context.Background(), filepath.Join(t.TempDir(), "db.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	logger := logging.NewTestLogger()
	return NewService(store, pub, logger.Logger), store, logger
}

func TestService_PostPublishesInsert(t *testing.T) {
	pub := &recordingPublisher{}
	svc, _, _ := newTestService(t, pub)

	m, err := svc.Post(context.Background(), chat.Draft{ConversationID: "p1", AuthorID: "u1", Content: "hello"})
	require.NoError(t, err)

	require.Len(t, pub.events, 1)
	ev := pub.events[0]
	assert.Equal(t, chat.EventInsert, ev.Type)
	assert.Equal(t, "p1", ev.ConversationID)
	assert.Equal(t, m.ID, ev.Message.ID)
}

func TestService_PostFailureDoesNotPublish(t *testing.T) {
	pub := &recordingPublisher{}
	svc, _, _ := newTestService(t, pub)

	_, err := svc.Post(context.Background(), chat.Draft{ConversationID: "p1", AuthorID: "u1", Content: " "})

	assert.ErrorIs(t, err, storage.ErrEmptyContent)
	assert.Empty(t, pub.events)
}

func TestService_PublishFailureKeepsWrite(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc, store, logger := newTestService(t, pub)
	before := testutil.ToFloat64(svc.metrics.PublishFailuresTotal.WithLabelValues("insert"))

	m, err := svc.Post(context.Background(), chat.Draft{ConversationID: "p1", AuthorID: "u1", Content: "durable"})
	require.NoError(t, err)

	got, err := store.GetMessage(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, "durable", got.Content)
	assert.Equal(t, before+1, testutil.ToFloat64(svc.metrics.PublishFailuresTotal.WithLabelValues("insert")))
	logger.AssertLogged(t, zapcore.ErrorLevel, "change event publish failed")
}

func TestService_EditAndDeletePublish(t *testing.T) {
	pub := &recordingPublisher{}
	svc, _, _ := newTestService(t, pub)
	ctx := context.Background()
	m, err := svc.Post(ctx, chat.Draft{ConversationID: "p1", AuthorID: "u1", Content: "v1"})
	require.NoError(t, err)

	_, err = svc.Edit(ctx, m.ID, "u1", "v2")
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, m.ID, "u1"))

	require.Len(t, pub.events, 3)
	assert.Equal(t, chat.EventUpdate, pub.events[1].Type)
	assert.Equal(t, "v2", pub.events[1].Message.Content)
	assert.Equal(t, chat.EventDelete, pub.events[2].Type)
	assert.Equal(t, m.ID, pub.events[2].Message.ID)
	assert.Equal(t, "p1", pub.events[2].ConversationID)
}

func TestService_EditForbidden(t *testing.T) {
	pub := &recordingPublisher{}
	svc, _, _ := newTestService(t, pub)
	ctx := context.Background()
	m, err := svc.Post(ctx, chat.Draft{ConversationID: "p1", AuthorID: "u1", Content: "mine"})
	require.NoError(t, err)

	_, err = svc.Edit(ctx, m.ID, "u2", "theirs")
	assert.ErrorIs(t, err, storage.ErrForbidden)
	assert.ErrorIs(t, svc.Delete(ctx, m.ID, "u2"), storage.ErrForbidden)
	assert.Len(t, pub.events, 1)
}

func TestService_ListAndProfiles(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.SaveProfile(ctx, storage.User{ID: "u1", Name: "Ada", Role: storage.RolePitcher})
	require.NoError(t, err)
	_, err = svc.Post(ctx, chat.Draft{ConversationID: "p1", AuthorID: "u1", Content: "one"})
	require.NoError(t, err)

	ms, err := svc.List(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, ms, 1)
	assert.Equal(t, "Ada", ms[0].Author.Name)

	u, err := svc.Author(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", u.Name)
}
