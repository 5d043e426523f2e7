package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"coach-agent/internal/domain"
	"coach-agent/internal/llm"
)

// ---------------------------------------------------------------------------
// chatURL helper
// ---------------------------------------------------------------------------

func TestChatURL(t *testing.T) {
	cases := []struct {
		base string
		want string
	}{
		{"https://api.openai.com/v1", "https://api.openai.com/v1/chat/completions"},
		{"https://api.openai.com/v1/", "https://api.openai.com/v1/chat/completions"},
		{"http://localhost:8080", "http://localhost:8080/v1/chat/completions"},
		{"", "https://api.openai.com/v1/chat/completions"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, chatURL(tc.base), "base=%q", tc.base)
	}
}

// ---------------------------------------------------------------------------
// NewClient
// ---------------------------------------------------------------------------

func TestNewClient_NilGetter(t *testing.T) {
	_, err := NewClient(nil, "/coach-agent")
	require.Error(t, err)
	require.Contains(t, err.Error(), "nil")
}

func TestNewClient_EmptyPrefix(t *testing.T) {
	_, err := NewClient(&fakeGetter{}, " / ")
	require.Error(t, err)
	require.Contains(t, err.Error(), "prefix")
}

func TestNewClient_Valid(t *testing.T) {
	c, err := NewClient(&fakeGetter{}, "/coach-agent/", WithMaxTokens(50))
	require.NoError(t, err)
	require.Equal(t, "https://api.openai.com/v1", c.baseURL)
	require.Equal(t, "/coach-agent", c.paramPrefix)
	require.Equal(t, 50, c.maxTokens)
}

// ---------------------------------------------------------------------------
// resolveSettings: parameter store caching
// ---------------------------------------------------------------------------

// fakeGetter is a minimal paramstore.Getter stub keyed by parameter name.
type fakeGetter struct {
	vals   map[string]string
	err    error
	calls  int
	failN  int
	onCall func(name string)
}

func (f *fakeGetter) GetParameter(_ context.Context, name string) (string, error) {
	f.calls++
	if f.onCall != nil {
		f.onCall(name)
	}
	if f.failN > 0 {
		f.failN--
		return "", errors.New("temporary ssm failure")
	}
	if f.err != nil {
		return "", f.err
	}
	v, ok := f.vals[name]
	if !ok {
		return "", errors.New("param not found: " + name)
	}
	return v, nil
}

func defaultGetter() *fakeGetter {
	return &fakeGetter{vals: map[string]string{
		"/coach-agent/open-ai-token":        `{"token":"sk-test"}`,
		"/coach-agent/config/openai_model": "gpt-4o-mini",
	}}
}

func TestResolveSettings_FetchedOnce(t *testing.T) {
	g := defaultGetter()
	c, err := NewClient(g, "/coach-agent")
	require.NoError(t, err)

	key, model, err := c.resolveSettings(context.Background())
	require.NoError(t, err)
	require.Equal(t, "sk-test", key)
	require.Equal(t, "gpt-4o-mini", model)
	require.Equal(t, 2, g.calls)

	_, _, _ = c.resolveSettings(context.Background())
	_, _, _ = c.resolveSettings(context.Background())
	require.Equal(t, 2, g.calls, "parameters must only be fetched once per process lifetime")
}

func TestResolveSettings_PinnedModelSkipsLookup(t *testing.T) {
	var names []string
	g := defaultGetter()
	g.onCall = func(name string) { names = append(names, name) }
	c, err := NewClient(g, "/coach-agent", WithModel("gpt-pinned"))
	require.NoError(t, err)

	_, model, err := c.resolveSettings(context.Background())
	require.NoError(t, err)
	require.Equal(t, "gpt-pinned", model)
	require.Equal(t, []string{"/coach-agent/open-ai-token"}, names)
}

func TestResolveSettings_FailureIsRetried(t *testing.T) {
	g := defaultGetter()
	g.failN = 1
	c, err := NewClient(g, "/coach-agent")
	require.NoError(t, err)

	_, _, err = c.resolveSettings(context.Background())
	require.Error(t, err)

	key, _, err := c.resolveSettings(context.Background())
	require.NoError(t, err)
	require.Equal(t, "sk-test", key)
}

func TestResolveSettings_EmptyModel(t *testing.T) {
	g := defaultGetter()
	g.vals["/coach-agent/config/openai_model"] = "  "
	c, err := NewClient(g, "/coach-agent")
	require.NoError(t, err)

	_, _, err = c.resolveSettings(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "model parameter is empty")
}

// ---------------------------------------------------------------------------
// fetchAPIKeyFromParamStore
// ---------------------------------------------------------------------------

func tokenGetter(val string) *fakeGetter {
	return &fakeGetter{vals: map[string]string{"/coach-agent/open-ai-token": val}}
}

func TestFetchAPIKey_JSONToken(t *testing.T) {
	key, err := fetchAPIKeyFromParamStore(context.Background(), tokenGetter(`{"token":"sk-from-json"}`), "/coach-agent/open-ai-token")
	require.NoError(t, err)
	require.Equal(t, "sk-from-json", key)
}

func TestFetchAPIKey_BareToken(t *testing.T) {
	key, err := fetchAPIKeyFromParamStore(context.Background(), tokenGetter(" sk-bare \n"), "/coach-agent/open-ai-token")
	require.NoError(t, err)
	require.Equal(t, "sk-bare", key)
}

func TestFetchAPIKey_JSONMissingTokenField(t *testing.T) {
	_, err := fetchAPIKeyFromParamStore(context.Background(), tokenGetter(`{"other":"value"}`), "/coach-agent/open-ai-token")
	require.Error(t, err)
	require.Contains(t, err.Error(), "API token is empty")
}

func TestFetchAPIKey_MalformedJSON(t *testing.T) {
	_, err := fetchAPIKeyFromParamStore(context.Background(), tokenGetter(`{"broken`), "/coach-agent/open-ai-token")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unmarshal")
}

func TestFetchAPIKey_GetterError(t *testing.T) {
	g := &fakeGetter{err: errors.New("ssm unavailable")}
	_, err := fetchAPIKeyFromParamStore(context.Background(), g, "/coach-agent/open-ai-token")
	require.Error(t, err)
	require.Contains(t, err.Error(), "ssm unavailable")
}

func TestFetchAPIKey_NilGetter(t *testing.T) {
	_, err := fetchAPIKeyFromParamStore(context.Background(), nil, "/coach-agent/open-ai-token")
	require.Error(t, err)
	require.Contains(t, err.Error(), "nil")
}

func TestFetchAPIKey_EmptyName(t *testing.T) {
	_, err := fetchAPIKeyFromParamStore(context.Background(), tokenGetter(`{"token":"x"}`), " ")
	require.Error(t, err)
	require.Contains(t, err.Error(), "empty")
}

// ---------------------------------------------------------------------------
// Client.Complete
// ---------------------------------------------------------------------------

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(
		defaultGetter(),
		"/coach-agent",
		WithBaseURL(srv.URL),
		WithHTTPClient(&http.Client{Timeout: 2 * time.Second}),
	)
	require.NoError(t, err)
	return c
}

var hi = []domain.ChatMessage{{Role: domain.RoleUser, Content: "hi"}}

func TestClient_Complete_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		reqBody, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var got chatRequest
		require.NoError(t, json.Unmarshal(reqBody, &got))
		require.Equal(t, "gpt-4o-mini", got.Model)
		require.Equal(t, hi, got.Messages)
		require.InDelta(t, 0.2, got.Temperature, 1e-9)
		require.Equal(t, 200, got.MaxTokens)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(200)
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-123",
			"object": "chat.completion",
			"choices": [{
				"index": 0,
				"message": { "role": "assistant", "content": "Hello from mock" }
			}]
		}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	resp, err := c.Complete(context.Background(), hi)
	require.NoError(t, err)
	require.Equal(t, "Hello from mock", resp)
}

func TestClient_Complete_AlternateEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		_, _ = w.Write([]byte(`{"response":"proxied text"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	resp, err := c.Complete(context.Background(), hi)
	require.NoError(t, err)
	require.Equal(t, "proxied text", resp)
}

func TestClient_Complete_EmptyMessages(t *testing.T) {
	c, err := NewClient(defaultGetter(), "/coach-agent")
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "messages")
}

func TestClient_Complete_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(400)
		_, _ = w.Write([]byte(`{"error":"bad request"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Complete(context.Background(), hi)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unexpected status")
	require.Contains(t, err.Error(), "400")

	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusBadRequest, statusErr.HTTPStatusCode())
	require.False(t, llm.Retryable(err))
}

func TestClient_Complete_ServerErrorsAreRetryable(t *testing.T) {
	for _, code := range []int{429, 500} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
			_, _ = w.Write([]byte(`{"error":"upstream"}`))
		}))

		c := newTestClient(t, srv)
		_, err := c.Complete(context.Background(), hi)
		srv.Close()
		require.Error(t, err)
		require.True(t, llm.Retryable(err), "code=%d", code)
	}
}

func TestClient_Complete_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		_, _ = w.Write([]byte(`not-a-json`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Complete(context.Background(), hi)
	require.ErrorIs(t, err, llm.ErrNoText)
	require.Contains(t, err.Error(), "decode response")
}

func TestClient_Complete_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Complete(context.Background(), hi)
	require.ErrorIs(t, err, llm.ErrNoText)
}

func TestClient_Complete_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(200)
		_, _ = w.Write([]byte(`{"response":"late"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	c.httpClient = &http.Client{Timeout: 50 * time.Millisecond}
	_, err := c.Complete(context.Background(), hi)
	require.Error(t, err)
	require.True(t, llm.Retryable(err))
}

func TestClient_Complete_NetworkError(t *testing.T) {
	c, err := NewClient(defaultGetter(), "/coach-agent")
	require.NoError(t, err)
	c.baseURL = "http://127.0.0.1:1"
	c.httpClient = &http.Client{Timeout: 100 * time.Millisecond}

	_, err = c.Complete(context.Background(), hi)
	require.Error(t, err)
	require.Contains(t, err.Error(), "request failed")
}
