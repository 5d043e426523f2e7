package usecase

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"coach-agent/internal/domain"
	"coach-agent/internal/observability"
)

const (
	replyNeutral       = "I'm here. Can you say that again in a few words?"
	replyMathCorrect   = "That's correct! You're a math wizard! You get a star! ⭐"
	replyStoryFallback = "Once upon a time, a friendly train named Zeal went on an adventure to find a glowing star."
	replyRoutinePrompt = "Let's get ready for a great day! What have you done so far?"
	replyFeelingsAsk   = "It's great to talk about our feelings. How are you feeling right now? (Happy, sad, tired...)"
	replyNoStars       = "You don't have any stars yet. Let's try an activity to earn one!"
	replyFinished      = "Great job! That was awesome, you earned a star! ⭐"

	numberGameMaxOperand = 6
)

var integerPattern = regexp.MustCompile(`-?\d+`)

// routineTasks maps a keyword to the task it completes; first match wins.
var routineTasks = []struct {
	keyword string
	task    string
}{
	{"brushed", "brushing your teeth"},
	{"teeth", "brushing your teeth"},
	{"showered", "taking a shower"},
}

var feelingWords = []string{"happy", "sad", "angry", "scared", "tired", "excited"}

type activityHandler func(r *Resolver, ctx context.Context, rec *domain.SessionRecord, message string) (string, error)

var activities = map[domain.Mode]activityHandler{
	domain.ModeNumberGame:     (*Resolver).numberGame,
	domain.ModeStoryTime:      (*Resolver).storyTime,
	domain.ModeMorningRoutine: (*Resolver).morningRoutine,
	domain.ModeFeelings:       (*Resolver).feelings,
	domain.ModePraise:         (*Resolver).praise,
}

func (r *Resolver) numberGame(ctx context.Context, rec *domain.SessionRecord, message string) (string, error) {
	if rec.NumberGame != nil {
		if guess, ok := firstInteger(message); ok {
			answer := rec.NumberGame.Answer
			rec.NumberGame = nil
			if guess == answer {
				r.awardStar(ctx, rec, domain.ModeNumberGame)
				return replyMathCorrect, nil
			}
			return fmt.Sprintf("Good try! The answer was %d. Let's try another one!", answer), nil
		}
	}

	a := r.intn(numberGameMaxOperand) + 1
	b := r.intn(numberGameMaxOperand) + 1
	question := fmt.Sprintf("What is %d + %d?", a, b)
	rec.NumberGame = &domain.NumberGameRound{Question: question, Answer: a + b}
	return "Let's play a number game! " + question, nil
}

func (r *Resolver) storyTime(ctx context.Context, rec *domain.SessionRecord, _ string) (string, error) {
	story, err := r.llm.Complete(ctx, []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: BuildStoryPrompt(rec)},
	})
	if err != nil {
		observability.LoggerFromContext(ctx).WarnContext(ctx, "story completion failed", "err", err)
		return replyStoryFallback, nil
	}
	if story = strings.TrimSpace(story); story == "" {
		return replyStoryFallback, nil
	}
	return story, nil
}

func (r *Resolver) morningRoutine(ctx context.Context, rec *domain.SessionRecord, message string) (string, error) {
	lc := strings.ToLower(message)
	for _, rt := range routineTasks {
		if strings.Contains(lc, rt.keyword) {
			r.awardStar(ctx, rec, domain.ModeMorningRoutine)
			return fmt.Sprintf("Great job on %s! You earned a star! ⭐", rt.task), nil
		}
	}
	return replyRoutinePrompt, nil
}

func (r *Resolver) feelings(_ context.Context, _ *domain.SessionRecord, message string) (string, error) {
	lc := strings.ToLower(message)
	for _, f := range feelingWords {
		if strings.Contains(lc, f) {
			return fmt.Sprintf("I heard that you are %s. Can you tell me one thing that made you feel %s?", f, f), nil
		}
	}
	return replyFeelingsAsk, nil
}

func (r *Resolver) praise(_ context.Context, rec *domain.SessionRecord, _ string) (string, error) {
	switch rec.Stars {
	case 0:
		return replyNoStars, nil
	case 1:
		return "You have 1 star! Great work, keep going! ⭐", nil
	default:
		return fmt.Sprintf("You have %d stars! Great work, keep going! ⭐", rec.Stars), nil
	}
}

// freeForm asks the gateway for a reply and falls back to canned rules when
// the gateway fails or returns nothing.
func (r *Resolver) freeForm(ctx context.Context, rec *domain.SessionRecord, message string) (string, error) {
	text, err := r.llm.Complete(ctx, buildChatMessages(rec, message))
	if err != nil {
		observability.LoggerFromContext(ctx).WarnContext(ctx, "chat completion failed", "err", err)
		return r.fallbackReply(ctx, rec, message), nil
	}
	if text = strings.TrimSpace(text); text == "" {
		return r.fallbackReply(ctx, rec, message), nil
	}
	return text, nil
}

// fallbackReply answers from canned rules using only the current message.
func (r *Resolver) fallbackReply(ctx context.Context, rec *domain.SessionRecord, message string) string {
	message = strings.TrimSpace(message)
	if message == "" {
		return fmt.Sprintf("Hi %s! Can you tell me one thing you did today?", rec.DisplayName())
	}
	lc := strings.ToLower(message)
	if strings.Contains(lc, "finished") || strings.Contains(lc, "done") {
		r.awardStar(ctx, rec, domain.ModeNormal)
		return replyFinished
	}
	return fmt.Sprintf("I heard: \"%s\". Can you tell me more in one sentence?", message)
}

func (r *Resolver) awardStar(ctx context.Context, rec *domain.SessionRecord, skill domain.Mode) {
	if badges := rec.AwardStar(skill); len(badges) > 0 {
		observability.LoggerFromContext(ctx).InfoContext(ctx, "badges unlocked",
			"session_id", rec.SessionID, "badges", badges, "stars", rec.Stars)
	}
}

func firstInteger(message string) (int, bool) {
	m := integerPattern.FindString(message)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}
