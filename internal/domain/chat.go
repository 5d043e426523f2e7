package domain

// Chat roles understood by the LLM integrations. Only RoleUser and RoleAssistant
// are ever persisted in a session history.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is the provider-agnostic chat message shape used by the session
// history and the LLM integrations.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
