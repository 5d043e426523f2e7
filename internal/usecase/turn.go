package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"coach-agent/internal/domain"
	"coach-agent/internal/llm"
	"coach-agent/internal/observability"
)

const defaultMaxHistory = 20

// TurnInput is one child utterance plus the optional client overrides.
type TurnInput struct {
	Message string
	Mode    string
	Profile *Profile
}

// Resolver applies one conversational turn to a session record.
type Resolver struct {
	llm        llm.Completer
	intn       func(n int) int
	now        func() time.Time
	maxHistory int
}

type ResolverOption func(*Resolver)

// WithRandom sets the source of number game operands. intn must return a
// value in [0, n).
func WithRandom(intn func(n int) int) ResolverOption {
	return func(r *Resolver) {
		if intn != nil {
			r.intn = intn
		}
	}
}

func WithClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// WithMaxHistory caps the stored history. Non-positive values keep the default.
func WithMaxHistory(n int) ResolverOption {
	return func(r *Resolver) {
		if n > 0 {
			r.maxHistory = n
		}
	}
}

func NewResolver(completer llm.Completer, opts ...ResolverOption) (*Resolver, error) {
	if completer == nil {
		return nil, errors.New("usecase: llm completer must not be nil")
	}
	r := &Resolver{
		llm:        completer,
		intn:       rand.IntN,
		now:        time.Now,
		maxHistory: defaultMaxHistory,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// ResolveTurn mutates rec with the effects of in and returns the reply. It
// always produces a reply: handler failures become a neutral clarifying
// question.
func (r *Resolver) ResolveTurn(ctx context.Context, rec *domain.SessionRecord, in TurnInput) string {
	mergeProfile(rec, in.Profile, in.Message)
	rec.Mode = r.nextMode(rec.Mode, in)

	message := strings.TrimSpace(in.Message)
	rec.AppendHistory(domain.RoleUser, message)

	reply, err := r.dispatch(ctx, rec, message)
	if err != nil {
		observability.LoggerFromContext(ctx).ErrorContext(ctx, "activity failed",
			"session_id", rec.SessionID, "mode", string(rec.Mode), "err", err)
		reply = replyNeutral
	}

	rec.AppendHistory(domain.RoleAssistant, reply)
	rec.TrimHistory(r.maxHistory)

	if badges := rec.Progress.Touch(r.now()); len(badges) > 0 {
		observability.LoggerFromContext(ctx).InfoContext(ctx, "badges unlocked",
			"session_id", rec.SessionID, "badges", badges, "streak", rec.Progress.Streak)
	}
	return reply
}

// nextMode picks the explicit mode (unknown values mean normal), else the
// detected one, else keeps current.
func (r *Resolver) nextMode(current domain.Mode, in TurnInput) domain.Mode {
	if strings.TrimSpace(in.Mode) != "" {
		if m, ok := ParseMode(in.Mode); ok {
			return m
		}
		return domain.ModeNormal
	}
	if m, ok := DetectMode(in.Message); ok {
		return m
	}
	if !current.Valid() {
		return domain.ModeNormal
	}
	return current
}

func (r *Resolver) dispatch(ctx context.Context, rec *domain.SessionRecord, message string) (reply string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("usecase: activity %s panicked: %v", rec.Mode, p)
		}
	}()

	if h, ok := activities[rec.Mode]; ok {
		return h(r, ctx, rec, message)
	}
	return r.freeForm(ctx, rec, message)
}
