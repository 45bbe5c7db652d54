package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tOgg1/pitchline/internal/backend"
	"github.com/tOgg1/pitchline/internal/db"
	"github.com/tOgg1/pitchline/internal/models"
	"github.com/tOgg1/pitchline/internal/testutil"
)

type cliEnv struct {
	dir      string
	messages *db.MessageRepository
	url      string
}

func setupCLI(t *testing.T) cliEnv {
	t.Helper()
	testutil.SkipIfNoNetwork(t)
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Setenv("PITCHLINE_SESSION_PATH", filepath.Join(dir, "session.json"))
	t.Setenv("PITCHLINE_LOGGING_LEVEL", "error")

	database, err := db.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	_, err = database.MigrateUp(context.Background())
	require.NoError(t, err)

	repo := db.NewMessageRepository(database)
	srv := httptest.NewServer(backend.NewServer(backend.Config{}, repo, nil).Handler())
	t.Cleanup(srv.Close)
	t.Setenv("PITCHLINE_BACKEND_URL", srv.URL)

	return cliEnv{dir: dir, messages: repo, url: srv.URL}
}

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd("test")
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func requireExitCode(t *testing.T, err error, code int) {
	t.Helper()
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr), "expected ExitError, got %v", err)
	require.Equal(t, code, exitErr.Code)
}

func TestRootCommandFindsSubcommands(t *testing.T) {
	root := newRootCmd("dev")

	for _, name := range []string{"chat", "login", "logout", "whoami", "send", "log", "config"} {
		found, _, err := root.Find([]string{name})
		require.NoError(t, err)
		require.Equal(t, name, found.Name())
	}

	found, _, err := root.Find([]string{"history"})
	require.NoError(t, err)
	require.Equal(t, "log", found.Name())
}

func TestLoginWhoamiLogout(t *testing.T) {
	env := setupCLI(t)

	out, err := runCLI(t, "", "login", "inv-1", "acme")
	require.NoError(t, err)
	require.Contains(t, out, "Signed in as inv-1, talking to acme")
	require.FileExists(t, filepath.Join(env.dir, "session.json"))

	out, err = runCLI(t, "", "whoami")
	require.NoError(t, err)
	require.Contains(t, out, "investor:   inv-1")
	require.Contains(t, out, "enterprise: acme")

	out, err = runCLI(t, "", "whoami", "--with", "globex", "--json")
	require.NoError(t, err)
	var pair map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &pair))
	require.Equal(t, "inv-1", pair["sender"])
	require.Equal(t, "globex", pair["receiver"])

	_, err = runCLI(t, "", "logout")
	require.NoError(t, err)
	_, statErr := os.Stat(filepath.Join(env.dir, "session.json"))
	require.True(t, os.IsNotExist(statErr))

	out, err = runCLI(t, "", "whoami")
	require.NoError(t, err)
	require.Contains(t, out, "investor:   -")
}

func TestSendStoresMessage(t *testing.T) {
	env := setupCLI(t)

	out, err := runCLI(t, "", "send", "--as", "inv-1", "--with", "acme", "Are", "you", "raising?")
	require.NoError(t, err)
	require.Contains(t, out, "Sent to acme")

	msgs, err := env.messages.Conversation(context.Background(), "inv-1", "acme")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "Are you raising?", msgs[0].Content)
}

func TestSendReadsPipedStdin(t *testing.T) {
	env := setupCLI(t)

	_, err := runCLI(t, "", "login", "inv-1", "acme")
	require.NoError(t, err)

	_, err = runCLI(t, "  deck attached\n", "send")
	require.NoError(t, err)

	count, err := env.messages.Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestSendRejectsBlankAndUnreadyIdentity(t *testing.T) {
	env := setupCLI(t)

	_, err := runCLI(t, "   ", "send", "--as", "inv-1", "--with", "acme")
	requireExitCode(t, err, ExitCodeUsage)

	_, err = runCLI(t, "", "send", "hello")
	requireExitCode(t, err, ExitCodeFailure)
	require.Contains(t, err.Error(), "no conversation selected")

	count, err := env.messages.Count(context.Background())
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestLogPrintsGroupedHistory(t *testing.T) {
	env := setupCLI(t)
	ctx := context.Background()
	require.NoError(t, env.messages.Create(ctx, &models.Message{Sender: "inv-1", Receiver: "acme", Content: "hello"}))
	require.NoError(t, env.messages.Create(ctx, &models.Message{Sender: "acme", Receiver: "inv-1", Content: "welcome"}))
	require.NoError(t, env.messages.Create(ctx, &models.Message{Sender: "inv-2", Receiver: "acme", Content: "someone else"}))

	out, err := runCLI(t, "", "log", "--as", "inv-1", "--with", "acme")
	require.NoError(t, err)
	require.Contains(t, out, "You: hello")
	require.Contains(t, out, "acme: welcome")
	require.NotContains(t, out, "someone else")
	require.Equal(t, 1, strings.Count(out, "-- "))

	out, err = runCLI(t, "", "log", "--as", "inv-1", "--with", "acme", "--json")
	require.NoError(t, err)
	var groups []models.Group
	require.NoError(t, json.Unmarshal([]byte(out), &groups))
	require.Len(t, groups, 1)
	require.Len(t, groups[0].Messages, 2)
	require.Equal(t, "hello", groups[0].Messages[0].Content)
}

func TestLogEmptyConversation(t *testing.T) {
	setupCLI(t)

	out, err := runCLI(t, "", "log", "--as", "inv-1", "--with", "acme")
	require.NoError(t, err)
	require.Contains(t, out, "No messages yet.")

	out, err = runCLI(t, "", "log", "--as", "inv-1", "--with", "acme", "--json")
	require.NoError(t, err)
	require.Equal(t, "[]\n", out)
}

func TestLogBackendUnavailable(t *testing.T) {
	setupCLI(t)

	_, err := runCLI(t, "", "log", "--as", "inv-1", "--with", "acme", "--backend", "http://127.0.0.1:1")
	requireExitCode(t, err, ExitCodeFailure)
	require.Contains(t, err.Error(), "fetch conversation")
}

func TestConfigInitAndShow(t *testing.T) {
	env := setupCLI(t)
	path := filepath.Join(env.dir, "pitchline.yaml")

	out, err := runCLI(t, "", "config", "init", path)
	require.NoError(t, err)
	require.Contains(t, out, path)

	_, err = runCLI(t, "", "config", "init", path)
	requireExitCode(t, err, ExitCodeFailure)

	out, err = runCLI(t, "", "--config", path, "config", "show")
	require.NoError(t, err)
	require.Contains(t, out, "poll_interval: 5s")
	require.Contains(t, out, env.url)
}

func TestServerConfigFlags(t *testing.T) {
	setupCLI(t)
	cmd := newServerRootCmd("test")
	require.NoError(t, cmd.ParseFlags([]string{"--addr", "127.0.0.1:9999", "--db", "/tmp/pitchd-test.db"}))

	cfg, err := loadServerConfig(cmd)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9999", cfg.Server.Addr)
	require.Equal(t, "/tmp/pitchd-test.db", cfg.Server.DBPath)
}
