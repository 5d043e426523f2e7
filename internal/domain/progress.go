package domain

import "time"

const dayLayout = "2006-01-02"

// Badge identifiers.
const (
	BadgeFirstStar      = "first-star"
	BadgeStarCollector  = "star-collector"
	BadgeSuperStar      = "super-star"
	BadgeThreeDayStreak = "three-day-streak"
	BadgeWeekStreak     = "week-streak"
)

var starBadges = []struct {
	stars int
	badge string
}{
	{1, BadgeFirstStar},
	{5, BadgeStarCollector},
	{10, BadgeSuperStar},
}

var streakBadges = []struct {
	days  int
	badge string
}{
	{3, BadgeThreeDayStreak},
	{7, BadgeWeekStreak},
}

// Progress tracks long-lived achievements of a session.
type Progress struct {
	Streak        int            `json:"streak"`
	LastActiveDay string         `json:"lastActiveDay,omitempty"`
	Badges        []string       `json:"badges"`
	Skills        map[string]int `json:"skills"`
}

// NewProgress returns an empty progress snapshot.
func NewProgress() Progress {
	return Progress{Badges: []string{}, Skills: map[string]int{}}
}

// HasBadge reports whether badge was already awarded.
func (p *Progress) HasBadge(badge string) bool {
	for _, b := range p.Badges {
		if b == badge {
			return true
		}
	}
	return false
}

// Touch records activity on the day of now and returns badges unlocked by the
// resulting streak. Same-day activity keeps the streak, the next day extends
// it and any gap restarts it at one.
func (p *Progress) Touch(now time.Time) []string {
	today := now.UTC().Format(dayLayout)
	switch {
	case p.LastActiveDay == today:
		return nil
	case p.LastActiveDay == now.UTC().AddDate(0, 0, -1).Format(dayLayout):
		p.Streak++
	default:
		p.Streak = 1
	}
	p.LastActiveDay = today

	var unlocked []string
	for _, sb := range streakBadges {
		if p.Streak >= sb.days && p.grant(sb.badge) {
			unlocked = append(unlocked, sb.badge)
		}
	}
	return unlocked
}

func (p *Progress) recordSkill(skill Mode) {
	if p.Skills == nil {
		p.Skills = map[string]int{}
	}
	p.Skills[string(skill)]++
}

func (p *Progress) awardBadges(stars int) []string {
	var unlocked []string
	for _, sb := range starBadges {
		if stars >= sb.stars && p.grant(sb.badge) {
			unlocked = append(unlocked, sb.badge)
		}
	}
	return unlocked
}

func (p *Progress) grant(badge string) bool {
	if p.HasBadge(badge) {
		return false
	}
	p.Badges = append(p.Badges, badge)
	return true
}
