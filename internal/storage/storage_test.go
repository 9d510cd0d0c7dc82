package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/pitchroom/internal/chat"
)

// newTestStore opens a fresh database whose clock advances one second per call.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "nested", "pitchroom.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	clock := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return s
}

func seedUser(t *testing.T, s *Store, id, name string) {
	t.Helper()
	_, err := s.UpsertUser(context.Background(), User{ID: id, Name: name, AvatarURL: "https://img/" + id, Role: RoleCollaborator})
	require.NoError(t, err)
}

func TestInsertMessage_JoinsAuthor(t *testing.T) {
	s := newTestStore(t)
	seedUser(t, s, "u1", "Ada")

	m, err := s.InsertMessage(context.Background(), chat.Draft{ConversationID: "p1", AuthorID: "u1", Content: "hello"})
	require.NoError(t, err)

	assert.NotEmpty(t, m.ID)
	assert.False(t, chat.IsTempID(m.ID))
	assert.Equal(t, "p1", m.ConversationID)
	assert.Equal(t, "hello", m.Content)
	assert.Equal(t, chat.Author{Name: "Ada", AvatarURL: "https://img/u1"}, m.Author)
	assert.Equal(t, time.UTC, m.CreatedAt.Location())
	assert.False(t, m.Pending)
}

func TestInsertMessage_UnknownAuthor(t *testing.T) {
	s := newTestStore(t)

	m, err := s.InsertMessage(context.Background(), chat.Draft{ConversationID: "p1", AuthorID: "ghost", Content: "boo"})
	require.NoError(t, err)

	assert.Equal(t, chat.UnknownAuthor, m.Author)
}

func TestInsertMessage_Rejects(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.InsertMessage(ctx, chat.Draft{ConversationID: "p1", AuthorID: "u1", Content: "  \t"})
	assert.ErrorIs(t, err, ErrEmptyContent)

	_, err = s.InsertMessage(ctx, chat.Draft{AuthorID: "u1", Content: "x"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = s.InsertMessage(ctx, chat.Draft{ConversationID: "p1", Content: "x"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestListMessages_AscendingAndScoped(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1", "Ada")

	for _, c := range []string{"one", "two", "three"} {
		_, err := s.InsertMessage(ctx, chat.Draft{ConversationID: "p1", AuthorID: "u1", Content: c})
		require.NoError(t, err)
	}
	_, err := s.InsertMessage(ctx, chat.Draft{ConversationID: "p2", AuthorID: "u1", Content: "elsewhere"})
	require.NoError(t, err)

	ms, err := s.ListMessages(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, ms, 3)
	assert.Equal(t, "one", ms[0].Content)
	assert.Equal(t, "three", ms[2].Content)
	for i := 1; i < len(ms); i++ {
		assert.False(t, ms[i].CreatedAt.Before(ms[i-1].CreatedAt))
	}

	empty, err := s.ListMessages(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestUpdateMessage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	m, err := s.InsertMessage(ctx, chat.Draft{ConversationID: "p1", AuthorID: "u1", Content: "v1"})
	require.NoError(t, err)

	_, err = s.UpdateMessage(ctx, m.ID, "u2", "hijack")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = s.UpdateMessage(ctx, "missing", "u1", "x")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.UpdateMessage(ctx, m.ID, "u1", " ")
	assert.ErrorIs(t, err, ErrEmptyContent)

	got, err := s.UpdateMessage(ctx, m.ID, "u1", "v2")
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Content)
	assert.Equal(t, m.CreatedAt, got.CreatedAt)
}

func TestDeleteMessage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	m, err := s.InsertMessage(ctx, chat.Draft{ConversationID: "p1", AuthorID: "u1", Content: "bye"})
	require.NoError(t, err)

	_, err = s.DeleteMessage(ctx, m.ID, "u2")
	assert.ErrorIs(t, err, ErrForbidden)

	gone, err := s.DeleteMessage(ctx, m.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, "p1", gone.ConversationID)

	_, err = s.GetMessage(ctx, m.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.DeleteMessage(ctx, m.ID, "u1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpsertUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.UpsertUser(ctx, User{ID: "u1", Name: "Ada", Role: RolePitcher})
	require.NoError(t, err)

	updated, err := s.UpsertUser(ctx, User{ID: "u1", Name: "Ada L.", AvatarURL: "https://img/ada", Role: RoleProfessional})
	require.NoError(t, err)

	assert.Equal(t, "Ada L.", updated.Name)
	assert.Equal(t, RoleProfessional, updated.Role)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)

	_, err = s.UpsertUser(ctx, User{ID: "u2", Name: "Bo", Role: "admin"})
	assert.ErrorIs(t, err, ErrInvalidRole)
	_, err = s.UpsertUser(ctx, User{ID: "u3", Role: RolePitcher})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = s.GetUser(ctx, "u2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAuthorJoinFollowsProfileChanges(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	m, err := s.InsertMessage(ctx, chat.Draft{ConversationID: "p1", AuthorID: "u1", Content: "hi"})
	require.NoError(t, err)
	assert.Equal(t, chat.UnknownAuthor, m.Author)

	seedUser(t, s, "u1", "Ada")

	got, err := s.GetMessage(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.Author.Name)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.sqlite")
	ctx := context.Background()

	s, err := Open(ctx, path)
	require.NoError(t, err)
	_, err = s.InsertMessage(ctx, chat.Draft{ConversationID: "p1", AuthorID: "u1", Content: "persist"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	ms, err := s.ListMessages(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, ms, 1)
	assert.Equal(t, "persist", ms[0].Content)
	assert.NoError(t, s.Ping(ctx))
}
