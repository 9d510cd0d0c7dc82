package integration

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/pitchroom/internal/apiclient"
	"github.com/fyrsmithlabs/pitchroom/internal/chat"
	"github.com/fyrsmithlabs/pitchroom/internal/feed"
	httpapi "github.com/fyrsmithlabs/pitchroom/internal/http"
	"github.com/fyrsmithlabs/pitchroom/internal/logging"
	"github.com/fyrsmithlabs/pitchroom/internal/messages"
	"github.com/fyrsmithlabs/pitchroom/internal/storage"
)

// createTestDaemon runs the full daemon stack: in-memory SQLite, an embedded
// NATS broker and the HTTP API on an httptest server. It returns the base URL.
func createTestDaemon(t *testing.T) string {
	t.Helper()

	natsSrv, err := feed.StartEmbedded(feed.EmbeddedOptions{Port: -1})
	require.NoError(t, err, "Should start embedded broker")
	t.Cleanup(func() {
		natsSrv.Shutdown()
		natsSrv.WaitForShutdown()
	})

	nc, err := nats.Connect(natsSrv.ClientURL())
	require.NoError(t, err, "Should connect to broker")
	t.Cleanup(nc.Close)

	store, err := storage.Open(context.Background(), ":memory:")
	require.NoError(t, err, "Should open message store")
	t.Cleanup(func() { _ = store.Close() })

	logger := logging.NewNop()
	svc := messages.NewService(store, feed.NewPublisher(nc, "", logger), logger)
	server, err := httpapi.NewServer(svc, feed.NewSubscriber(nc, "", logger), logger, &httpapi.Config{
		MessagesPerSecond: 100,
		Burst:             100,
	})
	require.NoError(t, err, "Should create server")

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

// participant is one user's client plus a chat session on a conversation.
type participant struct {
	identity chat.Identity
	client   *apiclient.Client
	session  *chat.Session
}

// joinConversation creates a client for userID, saves its profile and
// selects conversationID.
func joinConversation(t *testing.T, baseURL, userID, name, conversationID string) *participant {
	t.Helper()
	ctx := context.Background()

	client, err := apiclient.New(apiclient.Config{BaseURL: baseURL, UserID: userID})
	require.NoError(t, err, "Should create client")

	_, err = client.SaveProfile(ctx, apiclient.Profile{Name: name, Role: "pitcher"})
	require.NoError(t, err, "Should save profile")

	session := chat.NewSession(chat.Deps{
		Writer:  client,
		Fetcher: client,
		Authors: client,
		Feed:    client,
	})
	t.Cleanup(session.Close)

	require.NoError(t, session.Select(ctx, conversationID), "Should select conversation")

	return &participant{
		identity: chat.Identity{UserID: userID, DisplayName: name},
		client:   client,
		session:  session,
	}
}
