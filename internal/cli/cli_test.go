package cli

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"coach-agent/internal/app"
	"coach-agent/internal/config"
	"coach-agent/internal/domain"
)

type offlineCompleter struct{}

func (offlineCompleter) Complete(context.Context, []domain.ChatMessage) (string, error) {
	return "", errors.New("offline")
}

func localEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"STATE_TABLE", "DATABASE_URL", "LLM_TIMEOUT", "LLM_RETRIES", "MAX_HISTORY_ITEMS", "MAX_MESSAGE_LENGTH", "PORT", "PARAM_PREFIX", "WORKERS_AI_ACCOUNT_ID"} {
		t.Setenv(k, "")
	}
	t.Setenv("STATE_BACKEND", "memory")
	t.Setenv("PARAM_SOURCE", "env")
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("LOG_LEVEL", "error")
}

func offlineBuild(ctx context.Context, cfg *config.Config) (*app.App, error) {
	return app.Build(ctx, cfg, app.Deps{Completer: offlineCompleter{}})
}

func runChat(t *testing.T, input string, args ...string) string {
	t.Helper()
	localEnv(t)

	root := NewRootCmd(offlineBuild)
	var out bytes.Buffer
	root.SetIn(strings.NewReader(input))
	root.SetOut(&out)
	root.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env"), "chat"}, args...))
	require.NoError(t, root.ExecuteContext(context.Background()))
	return out.String()
}

func TestChatCommand_Conversation(t *testing.T) {
	out := runChat(t, "I finished my puzzle\n\n/progress\n/exercise feelings\n/quit\nnever read\n", "--session", "kid-1", "--name", "Ava")

	require.Contains(t, out, "session kid-1")
	require.Contains(t, out, "coach: Great job! That was awesome, you earned a star! ⭐")
	require.Contains(t, out, "stars: 1  streak: 1  mode: normal")
	require.Contains(t, out, "badges: first-star")
	require.Contains(t, out, "skills: normal=1")
	require.Contains(t, out, "coach: It's great to talk about our feelings.")
	require.NotContains(t, out, "never read")
}

func TestChatCommand_ReportsInputErrors(t *testing.T) {
	out := runChat(t, "/exercise juggling\n/help\n")
	require.Contains(t, out, "error: INVALID_INPUT (unknown_exercise_type)")
	require.Contains(t, out, chatHelp)
}

func TestRootCmd_InvalidConfig(t *testing.T) {
	localEnv(t)
	t.Setenv("STATE_BACKEND", "redis")

	root := NewRootCmd(offlineBuild)
	root.SetArgs([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env"), "chat"})
	require.ErrorContains(t, root.ExecuteContext(context.Background()), "STATE_BACKEND")
}

func TestRootCmd_LoadsEnvFile(t *testing.T) {
	localEnv(t)
	// godotenv never overrides variables that are already present.
	require.NoError(t, os.Unsetenv("MAX_HISTORY_ITEMS"))
	path := filepath.Join(t.TempDir(), "coach.env")
	require.NoError(t, os.WriteFile(path, []byte("MAX_HISTORY_ITEMS=8\n"), 0o600))

	var got *config.Config
	root := NewRootCmd(func(ctx context.Context, cfg *config.Config) (*app.App, error) {
		got = cfg
		return offlineBuild(ctx, cfg)
	})
	root.SetIn(strings.NewReader("/quit\n"))
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"--env-file", path, "chat"})
	require.NoError(t, root.ExecuteContext(context.Background()))
	require.Equal(t, 8, got.MaxHistoryItems)
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}

	done := make(chan error, 1)
	go func() { done <- serve(ctx, srv) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}
