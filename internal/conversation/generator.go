package conversation

import "context"

const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is an internal message representation that can include system prompts.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerateRequest carries one bounded completion request: a system prompt plus
// a window of conversation turns ending in the user's current message.
type GenerateRequest struct {
	System      string
	Messages    []ChatMessage
	MaxTokens   int64
	Temperature float64
}

// Generator produces free text for a therapeutic reply. Implementations get
// exactly one attempt per turn; any failure means the caller falls back to
// local templates. Failure is an expected outcome, never surfaced to the end
// user.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}
