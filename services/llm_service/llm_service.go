package llm_service

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatService generates the next assistant message for a conversation.
type ChatService interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}
