package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"coach-agent/internal/domain"
	"coach-agent/internal/observability"
)

const (
	defaultTimeout = 8 * time.Second
	defaultRetries = 1
)

// Completer is implemented by every provider client.
type Completer interface {
	Complete(ctx context.Context, messages []domain.ChatMessage) (string, error)
}

// Error is the gateway error: every failed completion surfaces as *Error.
type Error struct {
	Provider string
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("llm: %s failed after %d attempt(s): %v", e.Provider, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// Guard bounds each completion attempt with a timeout and retries retryable
// failures a fixed number of times.
type Guard struct {
	next     Completer
	provider string
	timeout  time.Duration
	retries  int
}

// NewGuard wraps next. Non-positive timeout and negative retries fall back to
// the defaults.
func NewGuard(next Completer, provider string, timeout time.Duration, retries int) (*Guard, error) {
	if next == nil {
		return nil, errors.New("llm: completer must not be nil")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if retries < 0 {
		retries = defaultRetries
	}
	return &Guard{next: next, provider: provider, timeout: timeout, retries: retries}, nil
}

func (g *Guard) Complete(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	var lastErr error
	attempts := 0
	for attempts <= g.retries {
		attempts++
		text, err := g.attempt(ctx, messages)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if ctx.Err() != nil || !Retryable(err) {
			break
		}
		observability.LoggerFromContext(ctx).WarnContext(ctx, "llm completion failed, retrying", "provider", g.provider, "attempt", attempts, "err", err)
	}
	return "", &Error{Provider: g.provider, Attempts: attempts, Err: lastErr}
}

func (g *Guard) attempt(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.next.Complete(ctx, messages)
}

// Retryable reports whether err is worth one more attempt: rate limiting,
// upstream 5xx, timeouts and transport failures.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var status httpStatusCoder
	if errors.As(err, &status) {
		code := status.HTTPStatusCode()
		return code == 429 || code >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
