package usecase

import (
	"strings"

	"coach-agent/internal/domain"
)

// modeKeywords is checked in order; the first mode with a matching keyword wins.
var modeKeywords = []struct {
	mode     domain.Mode
	keywords []string
}{
	{domain.ModeNumberGame, []string{"number game", "math", "count"}},
	{domain.ModeStoryTime, []string{"story", "story time", "tell me a story"}},
	{domain.ModeMorningRoutine, []string{"morning", "routine", "get ready"}},
	{domain.ModeFeelings, []string{"feel", "how i feel", "feelings"}},
	{domain.ModePraise, []string{"praise", "star", "good job"}},
}

// DetectMode infers an activity from free text by substring matching.
func DetectMode(text string) (domain.Mode, bool) {
	t := strings.ToLower(text)
	if strings.TrimSpace(t) == "" {
		return "", false
	}
	for _, mk := range modeKeywords {
		for _, kw := range mk.keywords {
			if strings.Contains(t, kw) {
				return mk.mode, true
			}
		}
	}
	return "", false
}

var modeAliases = map[string]domain.Mode{
	"chat":     domain.ModeNormal,
	"free":     domain.ModeNormal,
	"math":     domain.ModeNumberGame,
	"number":   domain.ModeNumberGame,
	"numbers":  domain.ModeNumberGame,
	"count":    domain.ModeNumberGame,
	"story":    domain.ModeStoryTime,
	"stories":  domain.ModeStoryTime,
	"morning":  domain.ModeMorningRoutine,
	"routine":  domain.ModeMorningRoutine,
	"brush":    domain.ModeMorningRoutine,
	"teeth":    domain.ModeMorningRoutine,
	"feeling":  domain.ModeFeelings,
	"emotions": domain.ModeFeelings,
	"star":     domain.ModePraise,
	"stars":    domain.ModePraise,
}

// ParseMode maps a client mode or exercise name to a Mode. Separators are
// normalized, so "number-game" and "Number Game" both parse.
func ParseMode(s string) (domain.Mode, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	if key == "" {
		return "", false
	}
	if m := domain.Mode(key); m.Valid() {
		return m, true
	}
	m, ok := modeAliases[key]
	return m, ok
}
