package usecase

import (
	"fmt"
	"strings"

	"coach-agent/internal/domain"
)

const (
	defaultPromptInterests = "trains, dinosaurs, and space"
	defaultStoryInterests  = "trains and dinosaurs"
)

// BuildSystemPrompt renders the tutor persona for free-form turns.
func BuildSystemPrompt(rec *domain.SessionRecord) string {
	lines := []string{
		"You are a kind, calm tutor speaking to a child who may be on the autism spectrum.",
		"Rules:",
		"- Literal language only. No metaphors or sarcasm.",
		"- Use short, concrete sentences (1-2 short sentences).",
		"- Give one instruction at a time.",
		"- Use the child's interests: " + rec.InterestList(defaultPromptInterests) + ".",
		"- Ask direct closed questions when possible.",
		"- If something is unclear, acknowledge and ask one clear follow-up.",
	}
	if name := strings.TrimSpace(rec.ChildName); name != "" {
		lines = append(lines, fmt.Sprintf("The child's name is %s.", name))
	}
	if rec.Age > 0 {
		lines = append(lines, fmt.Sprintf("The child is %d years old.", rec.Age))
	}
	mode := rec.Mode
	if mode == "" {
		mode = domain.ModeNormal
	}
	lines = append(lines, fmt.Sprintf("CURRENT ACTIVITY MODE: %s.", mode))
	return strings.Join(lines, "\n")
}

// BuildStoryPrompt asks for a two-sentence story around the child's interests.
func BuildStoryPrompt(rec *domain.SessionRecord) string {
	return fmt.Sprintf(
		"Tell a short 2-sentence imaginative story for a child who likes %s. Keep it simple and literal.",
		rec.InterestList(defaultStoryInterests),
	)
}

// buildChatMessages prepends the system prompt to the session history and
// appends message unless it is already the last user entry.
func buildChatMessages(rec *domain.SessionRecord, message string) []domain.ChatMessage {
	messages := make([]domain.ChatMessage, 0, len(rec.History)+2)
	messages = append(messages, domain.ChatMessage{Role: domain.RoleSystem, Content: BuildSystemPrompt(rec)})
	messages = append(messages, rec.History...)

	message = strings.TrimSpace(message)
	if message == "" {
		return messages
	}
	if n := len(rec.History); n > 0 && rec.History[n-1].Role == domain.RoleUser && strings.TrimSpace(rec.History[n-1].Content) == message {
		return messages
	}
	return append(messages, domain.ChatMessage{Role: domain.RoleUser, Content: message})
}
