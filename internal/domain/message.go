package domain

// Role classifies the speaker of a message.
type Role string

const (
	// RoleSystem marks the persona preamble.
	RoleSystem Role = "system"
	// RoleUser marks a human turn.
	RoleUser Role = "user"
	// RoleAssistant marks a model turn.
	RoleAssistant Role = "assistant"
)

// Message is one turn in a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// SystemMessage returns a system message with the given content.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage returns a user message with the given content.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage returns an assistant message with the given content.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}
