package domain

import (
	"errors"
	"strings"
	"time"
)

// ErrVersionConflict is returned by session stores when the stored record has
// moved past the version the caller loaded.
var ErrVersionConflict = errors.New("session version conflict")

// Mode is the activity currently governing turn resolution.
type Mode string

const (
	ModeNormal         Mode = "normal"
	ModeNumberGame     Mode = "number_game"
	ModeStoryTime      Mode = "story_time"
	ModeMorningRoutine Mode = "morning_routine"
	ModeFeelings       Mode = "feelings"
	ModePraise         Mode = "praise"
)

// Modes lists every known activity mode.
var Modes = []Mode{ModeNormal, ModeNumberGame, ModeStoryTime, ModeMorningRoutine, ModeFeelings, ModePraise}

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	for _, known := range Modes {
		if m == known {
			return true
		}
	}
	return false
}

// NumberGameRound is the pending question of the number game.
type NumberGameRound struct {
	Question string `json:"question"`
	Answer   int    `json:"answer"`
}

// SessionRecord is the full state of one coaching session.
type SessionRecord struct {
	SessionID  string           `json:"sessionId"`
	ChildName  string           `json:"childName,omitempty"`
	Age        int              `json:"age,omitempty"`
	Interests  []string         `json:"interests"`
	Mode       Mode             `json:"mode"`
	History    []ChatMessage    `json:"history"`
	Stars      int              `json:"stars"`
	NumberGame *NumberGameRound `json:"numberGame,omitempty"`
	Progress   Progress         `json:"progress"`

	// Version is the store version this record was loaded at. Zero means the
	// record has never been persisted.
	Version   int64     `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewSessionRecord returns a record with defaults for a first request.
func NewSessionRecord(sessionID string, now time.Time) *SessionRecord {
	now = now.UTC()
	return &SessionRecord{
		SessionID: sessionID,
		Interests: []string{},
		Mode:      ModeNormal,
		History:   []ChatMessage{},
		Progress:  NewProgress(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// DisplayName is the name used to address the child.
func (r *SessionRecord) DisplayName() string {
	if name := strings.TrimSpace(r.ChildName); name != "" {
		return name
	}
	return "friend"
}

// AppendHistory adds a history entry. Blank content is ignored.
func (r *SessionRecord) AppendHistory(role, content string) {
	if strings.TrimSpace(content) == "" {
		return
	}
	r.History = append(r.History, ChatMessage{Role: role, Content: content})
}

// TrimHistory drops the oldest entries so at most limit remain.
func (r *SessionRecord) TrimHistory(limit int) {
	if limit <= 0 || len(r.History) <= limit {
		return
	}
	kept := make([]ChatMessage, limit)
	copy(kept, r.History[len(r.History)-limit:])
	r.History = kept
}

// AwardStar adds one star earned through skill and returns any badges the
// star unlocked. It is the only way Stars changes, which keeps it monotonic.
func (r *SessionRecord) AwardStar(skill Mode) []string {
	r.Stars++
	r.Progress.recordSkill(skill)
	return r.Progress.awardBadges(r.Stars)
}

// InterestList returns the interests joined for prompts, or def when empty.
func (r *SessionRecord) InterestList(def string) string {
	cleaned := make([]string, 0, len(r.Interests))
	for _, in := range r.Interests {
		if in = strings.TrimSpace(in); in != "" {
			cleaned = append(cleaned, in)
		}
	}
	if len(cleaned) == 0 {
		return def
	}
	return strings.Join(cleaned, ", ")
}
