package apiclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/pitchroom/internal/chat"
	"github.com/fyrsmithlabs/pitchroom/internal/feed"
	httpserver "github.com/fyrsmithlabs/pitchroom/internal/http"
	"github.com/fyrsmithlabs/pitchroom/internal/logging"
	"github.com/fyrsmithlabs/pitchroom/internal/messages"
	"github.com/fyrsmithlabs/pitchroom/internal/storage"
)

// startDaemon runs the full server stack in-process and returns its URL.
func startDaemon(t *testing.T, cfg *httpserver.Config) string {
	t.Helper()

	natsSrv, err := feed.StartEmbedded(feed.EmbeddedOptions{Port: -1})
	require.NoError(t, err)
	t.Cleanup(func() {
		natsSrv.Shutdown()
		natsSrv.WaitForShutdown()
	})
	nc, err := nats.Connect(natsSrv.ClientURL())
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	store, err := storage.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	logger := logging.NewNop()
	svc := messages.NewService(store, feed.NewPublisher(nc, "", logger), logger)
	server, err := httpserver.NewServer(svc, feed.NewSubscriber(nc, "", logger), logger, cfg)
	require.NoError(t, err)

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

func newClient(t *testing.T, baseURL, user string) *Client {
	t.Helper()
	c, err := New(Config{BaseURL: baseURL, UserID: user, Timeout: 5 * time.Second})
	require.NoError(t, err)
	return c
}

func TestNew(t *testing.T) {
	t.Run("requires base URL", func(t *testing.T) {
		_, err := New(Config{UserID: "alice"})
		assert.Error(t, err)
	})
	t.Run("requires valid user id", func(t *testing.T) {
		_, err := New(Config{BaseURL: "http://localhost:1", UserID: "not valid"})
		assert.Error(t, err)
	})
	t.Run("trims trailing slash", func(t *testing.T) {
		c, err := New(Config{BaseURL: "http://localhost:1/", UserID: "alice"})
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:1", c.baseURL)
		assert.Equal(t, defaultTimeout, c.httpClient.Timeout)
		assert.Equal(t, "alice", c.UserID())
	})
}

func TestClient_MessageRoundTrip(t *testing.T) {
	ctx := context.Background()
	url := startDaemon(t, nil)
	alice := newClient(t, url, "alice")
	bob := newClient(t, url, "bob")

	require.NoError(t, alice.Health(ctx))

	p, err := alice.SaveProfile(ctx, Profile{Name: "Alice", AvatarURL: "https://example.com/a.png", Role: "pitcher"})
	require.NoError(t, err)
	assert.Equal(t, "alice", p.ID)

	m, err := alice.WriteMessage(ctx, chat.Draft{ConversationID: "pitch-1", AuthorID: "alice", Content: "hello"})
	require.NoError(t, err)
	assert.False(t, chat.IsTempID(m.ID))
	assert.Equal(t, "alice", m.AuthorID)
	assert.Equal(t, "Alice", m.Author.Name)

	_, err = bob.WriteMessage(ctx, chat.Draft{ConversationID: "pitch-1", Content: "hi alice"})
	require.NoError(t, err)

	ms, err := bob.FetchMessages(ctx, "pitch-1")
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, "hello", ms[0].Content)
	assert.Equal(t, "bob", ms[1].AuthorID)
	assert.Equal(t, chat.UnknownAuthor.Name, ms[1].Author.Name)

	author, err := bob.LookupAuthor(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, chat.Author{Name: "Alice", AvatarURL: "https://example.com/a.png"}, author)

	_, err = bob.EditMessage(ctx, m.ID, "hijacked")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, "forbidden", apiErr.Code)
	assert.ErrorIs(t, err, ErrForbidden)

	edited, err := alice.EditMessage(ctx, m.ID, "hello, edited")
	require.NoError(t, err)
	assert.Equal(t, "hello, edited", edited.Content)

	require.NoError(t, alice.DeleteMessage(ctx, m.ID))
	err = alice.DeleteMessage(ctx, m.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	ms, err = bob.FetchMessages(ctx, "pitch-1")
	require.NoError(t, err)
	assert.Len(t, ms, 1)
}

func TestClient_Errors(t *testing.T) {
	ctx := context.Background()
	url := startDaemon(t, &httpserver.Config{MessagesPerSecond: 0.001, Burst: 2})
	c := newClient(t, url, "alice")

	_, err := c.LookupAuthor(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.WriteMessage(ctx, chat.Draft{ConversationID: "c1", Content: " "})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)

	_, err = c.WriteMessage(ctx, chat.Draft{ConversationID: "c1", Content: "first"})
	require.NoError(t, err)
	_, err = c.WriteMessage(ctx, chat.Draft{ConversationID: "c1", Content: "second"})
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestClient_NonJSONError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer ts.Close()

	err := newClient(t, ts.URL, "alice").Health(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "bad gateway", apiErr.Message)
}

func TestClient_SendsIdentity(t *testing.T) {
	var got string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-User-ID")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer ts.Close()

	ms, err := newClient(t, ts.URL, "carol").FetchMessages(context.Background(), "c1")
	require.NoError(t, err)
	assert.Empty(t, ms)
	assert.Equal(t, "carol", got)
}
