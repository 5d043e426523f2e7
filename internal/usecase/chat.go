package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"coach-agent/internal/domain"
	"coach-agent/internal/observability"
)

const (
	defaultMaxMessage = 1000
	maxSessionIDLen   = 128
	maxTurnAttempts   = 2
)

// SessionStore persists session records with optimistic versioning: Put
// fails with domain.ErrVersionConflict when the record changed since Get.
type SessionStore interface {
	Get(ctx context.Context, sessionID string) (*domain.SessionRecord, error)
	Put(ctx context.Context, rec *domain.SessionRecord) error
}

type ChatService struct {
	store         SessionStore
	resolver      *Resolver
	maxMessageLen int
	now           func() time.Time
}

type ChatInput struct {
	SessionID string
	Message   string
	Mode      string
	Profile   *Profile
}

type ChatOutput struct {
	Response string
}

type ExerciseInput struct {
	SessionID    string
	ExerciseType string
}

type ProgressOutput struct {
	SessionID string
	ChildName string
	Stars     int
	Mode      domain.Mode
	Streak    int
	Badges    []string
	Skills    map[string]int
}

func NewChatService(store SessionStore, resolver *Resolver, maxMessageLen int) (*ChatService, error) {
	if store == nil {
		return nil, errors.New("usecase: session store must not be nil")
	}
	if resolver == nil {
		return nil, errors.New("usecase: resolver must not be nil")
	}
	if maxMessageLen <= 0 {
		maxMessageLen = defaultMaxMessage
	}
	return &ChatService{
		store:         store,
		resolver:      resolver,
		maxMessageLen: maxMessageLen,
		now:           time.Now,
	}, nil
}

// Chat resolves one turn and persists the session.
func (s *ChatService) Chat(ctx context.Context, in ChatInput) (ChatOutput, error) {
	sessionID, err := validSessionID(in.SessionID)
	if err != nil {
		return ChatOutput{}, err
	}
	if len(in.Message) > s.maxMessageLen {
		return ChatOutput{}, newError(ErrorInvalidInput, "message_too_long", nil)
	}
	reply, err := s.runTurn(ctx, sessionID, TurnInput{Message: in.Message, Mode: in.Mode, Profile: in.Profile})
	if err != nil {
		return ChatOutput{}, err
	}
	return ChatOutput{Response: reply}, nil
}

// StartExercise switches the session to the named activity and returns its
// opening reply.
func (s *ChatService) StartExercise(ctx context.Context, in ExerciseInput) (ChatOutput, error) {
	sessionID, err := validSessionID(in.SessionID)
	if err != nil {
		return ChatOutput{}, err
	}
	mode, ok := ParseMode(in.ExerciseType)
	if !ok {
		return ChatOutput{}, newError(ErrorInvalidInput, "unknown_exercise_type", nil)
	}
	reply, err := s.runTurn(ctx, sessionID, TurnInput{Mode: string(mode)})
	if err != nil {
		return ChatOutput{}, err
	}
	return ChatOutput{Response: reply}, nil
}

// Progress returns the achievements of a session. Unknown sessions report a
// zero snapshot.
func (s *ChatService) Progress(ctx context.Context, sessionID string) (ProgressOutput, error) {
	sessionID, err := validSessionID(sessionID)
	if err != nil {
		return ProgressOutput{}, err
	}
	rec, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return ProgressOutput{}, newError(ErrorInternal, "store_read_error", err)
	}
	if rec == nil {
		rec = domain.NewSessionRecord(sessionID, s.now())
	}

	out := ProgressOutput{
		SessionID: sessionID,
		ChildName: rec.ChildName,
		Stars:     rec.Stars,
		Mode:      rec.Mode,
		Streak:    rec.Progress.Streak,
		Badges:    append([]string{}, rec.Progress.Badges...),
		Skills:    make(map[string]int, len(rec.Progress.Skills)),
	}
	for k, v := range rec.Progress.Skills {
		out.Skills[k] = v
	}
	if out.Mode == "" {
		out.Mode = domain.ModeNormal
	}
	return out, nil
}

// runTurn loads, resolves and stores one turn. A version conflict reloads the
// session and resolves the turn again once.
func (s *ChatService) runTurn(ctx context.Context, sessionID string, in TurnInput) (string, error) {
	ctx = context.WithoutCancel(ctx)
	log := observability.LoggerFromContext(ctx)

	for attempt := 1; ; attempt++ {
		rec, err := s.store.Get(ctx, sessionID)
		if err != nil {
			return "", newError(ErrorInternal, "store_read_error", err)
		}
		if rec == nil {
			rec = domain.NewSessionRecord(sessionID, s.now())
		}

		reply := s.resolver.ResolveTurn(ctx, rec, in)

		err = s.store.Put(ctx, rec)
		if err == nil {
			log.InfoContext(ctx, "turn stored",
				"session_id", sessionID, "mode", string(rec.Mode), "stars", rec.Stars, "attempt", attempt)
			return reply, nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			return "", newError(ErrorInternal, "store_write_error", err)
		}
		if attempt >= maxTurnAttempts {
			return "", newError(ErrorConflict, "version_conflict", err)
		}
		log.WarnContext(ctx, "session changed concurrently, retrying turn", "session_id", sessionID)
	}
}

func validSessionID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", newError(ErrorInvalidInput, "missing_session_id", nil)
	}
	if len(id) > maxSessionIDLen {
		return "", newError(ErrorInvalidInput, "session_id_too_long", nil)
	}
	return id, nil
}
