// Package workersai is a client for the Cloudflare Workers AI REST endpoint
// (POST /accounts/{account}/ai/run/{model}).
package workersai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"coach-agent/internal/domain"
	"coach-agent/internal/integrations/paramstore"
	"coach-agent/internal/llm"
)

const (
	defaultBaseURL   = "https://api.cloudflare.com/client/v4"
	DefaultModel     = "@cf/meta/llama-3.3-8b-instruct"
	defaultMaxTokens = 200
)

type runRequest struct {
	Messages    []domain.ChatMessage `json:"messages"`
	Temperature float64              `json:"temperature"`
	MaxTokens   int                  `json:"max_tokens,omitempty"`
}

// envelopeErrors is the error list Workers AI returns alongside success=false.
type envelopeErrors struct {
	Success *bool `json:"success"`
	Errors  []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// HTTPStatusError captures non-2xx upstream responses.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("workersai: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

type Client struct {
	baseURL     string
	accountID   string
	model       string
	httpClient  *http.Client
	getter      paramstore.Getter
	paramPrefix string
	maxTokens   int

	tokenMu sync.RWMutex
	token   string
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithModel(model string) Option {
	return func(c *Client) {
		if model = strings.TrimSpace(model); model != "" {
			c.model = model
		}
	}
}

// NewClient creates a Workers AI client. The API token is read from
// <paramPrefix>/workers-ai-token on first use.
func NewClient(ps paramstore.Getter, paramPrefix, accountID string, opts ...Option) (*Client, error) {
	if ps == nil {
		return nil, errors.New("workersai: paramstore getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("workersai: parameter prefix must not be empty")
	}
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, errors.New("workersai: account id must not be empty")
	}
	c := &Client{
		baseURL:     defaultBaseURL,
		accountID:   accountID,
		model:       DefaultModel,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		getter:      ps,
		paramPrefix: paramPrefix,
		maxTokens:   defaultMaxTokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) runURL() string {
	base := strings.TrimRight(c.baseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	return fmt.Sprintf("%s/accounts/%s/ai/run/%s", base, c.accountID, strings.TrimLeft(c.model, "/"))
}

func (c *Client) resolveToken(ctx context.Context) (string, error) {
	c.tokenMu.RLock()
	token := c.token
	c.tokenMu.RUnlock()
	if token != "" {
		return token, nil
	}

	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	if c.token != "" {
		return c.token, nil
	}
	raw, err := c.getter.GetParameter(ctx, c.paramPrefix+"/workers-ai-token")
	if err != nil {
		return "", fmt.Errorf("workersai: fetch token from paramstore: %w", err)
	}
	token = strings.TrimSpace(raw)
	if token == "" {
		return "", errors.New("workersai: API token is empty")
	}
	c.token = token
	return token, nil
}

// Complete runs the configured text-generation model over messages.
func (c *Client) Complete(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	if len(messages) == 0 {
		return "", errors.New("workersai: messages must not be empty")
	}
	token, err := c.resolveToken(ctx)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(runRequest{Messages: messages, Temperature: 0.2, MaxTokens: c.maxTokens})
	if err != nil {
		return "", fmt.Errorf("workersai: marshal request: %w", err)
	}

	url := c.runURL()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("workersai: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("workersai: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return "", fmt.Errorf("workersai: request failed: %w", &HTTPStatusError{StatusCode: res.StatusCode, URL: url, Body: string(buf)})
	}
	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("workersai: read response body: %w", err)
	}

	var env envelopeErrors
	if json.Unmarshal(raw, &env) == nil && env.Success != nil && !*env.Success {
		msg := "unknown error"
		if len(env.Errors) > 0 {
			msg = env.Errors[0].Message
		}
		return "", fmt.Errorf("workersai: model run unsuccessful: %s", msg)
	}

	text, err := llm.ExtractText(raw)
	if err != nil {
		return "", fmt.Errorf("workersai: decode response: %w", err)
	}
	return text, nil
}
