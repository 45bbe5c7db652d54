package backend

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tOgg1/pitchline/internal/conversation"
	"github.com/tOgg1/pitchline/internal/db"
	"github.com/tOgg1/pitchline/internal/identity"
	"github.com/tOgg1/pitchline/internal/msgapi"
	"github.com/tOgg1/pitchline/internal/testutil"
)

func newTestServer(t *testing.T, cfg Config) (*httptest.Server, *db.MessageRepository) {
	t.Helper()
	testutil.SkipIfNoNetwork(t)
	database, err := db.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	_, err = database.MigrateUp(context.Background())
	require.NoError(t, err)

	repo := db.NewMessageRepository(database)
	srv := httptest.NewServer(NewServer(cfg, repo, nil).Handler())
	t.Cleanup(srv.Close)
	return srv, repo
}

func TestClientRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t, Config{})
	client := msgapi.NewClient(srv.URL)
	ctx := context.Background()

	require.NoError(t, client.Send(ctx, "inv-1", "acme", "hello"))
	require.NoError(t, client.Send(ctx, "acme", "inv-1", "welcome"))
	require.NoError(t, client.Send(ctx, "inv-2", "acme", "not ours"))

	msgs, err := client.Conversation(ctx, "inv-1", "acme")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, "hello", msgs[0].Content)
	require.Equal(t, "welcome", msgs[1].Content)
	require.NotEmpty(t, msgs[0].ID)
	require.False(t, msgs[0].CreatedAt.IsZero())
}

func TestSendValidation(t *testing.T) {
	srv, repo := newTestServer(t, Config{})
	client := msgapi.NewClient(srv.URL)

	err := client.Send(context.Background(), "inv-1", "", "   ")
	var statusErr *msgapi.StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusBadRequest, statusErr.Code)
	require.Contains(t, statusErr.Body, "receiver is required")

	resp, err := http.Post(srv.URL+"/msg/send", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestConversationRequiresBothParticipants(t *testing.T) {
	srv, _ := newTestServer(t, Config{})
	resp, err := http.Get(srv.URL + "/msg/conversation?sender=inv-1")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRateLimitReturns429(t *testing.T) {
	srv, _ := newTestServer(t, Config{RateLimitRPS: 0.001, RateLimitBurst: 2})
	client := msgapi.NewClient(srv.URL)
	ctx := context.Background()

	_, err := client.Conversation(ctx, "a", "b")
	require.NoError(t, err)
	_, err = client.Conversation(ctx, "a", "b")
	require.NoError(t, err)

	_, err = client.Conversation(ctx, "a", "b")
	var statusErr *msgapi.StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusTooManyRequests, statusErr.Code)

	require.NoError(t, client.Health(ctx))
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, Config{})
	client := msgapi.NewClient(srv.URL)
	require.NoError(t, client.Send(context.Background(), "a", "b", "hi"))

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	require.Contains(t, string(body), "pitchd_messages_stored_total 1")
	require.Contains(t, string(body), `pitchd_http_requests_total{code="201",route="/msg/send"} 1`)
}

// Two engines on opposite sides of one conversation converge through the
// real HTTP service.
func TestEnginesConvergeThroughService(t *testing.T) {
	srv, _ := newTestServer(t, Config{})
	cfg := conversation.Config{PollInterval: time.Hour}

	alice := conversation.New(cfg, msgapi.NewClient(srv.URL), identity.Static{Sender: "A", Receiver: "B"})
	bob := conversation.New(cfg, msgapi.NewClient(srv.URL), identity.Static{Sender: "B", Receiver: "A"})

	ctx := context.Background()
	require.NoError(t, alice.Open(ctx))
	defer alice.Close()
	require.NoError(t, bob.Open(ctx))
	defer bob.Close()

	require.True(t, alice.SendMessage("hi"))
	drainCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, alice.Drain(drainCtx))

	snap := alice.Snapshot()
	require.Len(t, snap.Canonical, 1)
	require.False(t, snap.Canonical[0].IsOptimistic())

	require.NoError(t, bob.Refresh())
	require.NoError(t, bob.Drain(drainCtx))
	theirs := bob.Snapshot()
	require.Len(t, theirs.Canonical, 1)
	require.Equal(t, snap.Canonical[0].ID, theirs.Canonical[0].ID)
	require.Equal(t, "A", theirs.Canonical[0].Sender)
}
