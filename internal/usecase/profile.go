package usecase

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"coach-agent/internal/domain"
)

const maxAge = 18

var (
	namePattern = regexp.MustCompile(`(?i)\b(?:my name is|i'm called|i am called|call me)\s+(\p{L}[\p{L}'-]{0,29})`)
	agePattern  = regexp.MustCompile(`(?i)\bi(?:'m| am)\s+(\d{1,2})\s+years?\s+old\b`)
)

// nameStopwords are words that follow a name phrase without being a name.
var nameStopwords = map[string]bool{
	"not": true, "when": true, "if": true, "later": true, "back": true, "maybe": true,
	"please": true, "now": true, "so": true, "that": true, "what": true, "the": true,
	"a": true, "an": true, "because": true, "tomorrow": true,
}

// Profile carries the child details a client may send with a turn. Zero
// values mean "not provided"; a non-nil Interests replaces the stored list,
// even when empty.
type Profile struct {
	ChildName string
	Age       int
	Interests []string
}

// mergeProfile applies details found in the message, then client-supplied
// fields, so explicit client values win.
func mergeProfile(rec *domain.SessionRecord, p *Profile, message string) {
	if name, ok := extractName(message); ok {
		rec.ChildName = name
	}
	if age, ok := extractAge(message); ok {
		rec.Age = age
	}
	if p == nil {
		return
	}
	if name := strings.TrimSpace(p.ChildName); name != "" {
		rec.ChildName = name
	}
	if p.Age > 0 {
		rec.Age = p.Age
	}
	if p.Interests != nil {
		rec.Interests = append([]string{}, p.Interests...)
	}
}

func extractName(message string) (string, bool) {
	m := namePattern.FindStringSubmatch(message)
	if m == nil {
		return "", false
	}
	name := strings.Trim(m[1], "'-")
	if name == "" || nameStopwords[strings.ToLower(name)] {
		return "", false
	}
	r, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(r)) + strings.ToLower(name[size:]), true
}

func extractAge(message string) (int, bool) {
	m := agePattern.FindStringSubmatch(message)
	if m == nil {
		return 0, false
	}
	age, err := strconv.Atoi(m[1])
	if err != nil || age <= 0 || age > maxAge {
		return 0, false
	}
	return age, true
}
