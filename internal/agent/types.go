// Package agent implements the chat-completion gateway.
package agent

import "github.com/ashureev/cgpt/internal/domain"

const (
	// MaxTokens bounds every completion request.
	MaxTokens = 512

	// DefaultOpenAIModel is used when no model is configured for OpenAI.
	DefaultOpenAIModel = "gpt-3.5-turbo"
	// DefaultAnthropicModel is used when no model is configured for Anthropic.
	DefaultAnthropicModel = "claude-3-5-haiku-latest"

	// NoContentText replaces a candidate that carried no text.
	NoContentText = "No content in response!"
)

// Reply is the outcome of a completion: either an answer or no reply at all.
// The zero value is NoReply.
type Reply struct {
	msg domain.Message
	ok  bool
}

// Answer wraps a generated message.
func Answer(msg domain.Message) Reply {
	return Reply{msg: msg, ok: true}
}

// NoReply reports that the provider returned zero candidates.
func NoReply() Reply {
	return Reply{}
}

// Message returns the generated message and whether there was one.
func (r Reply) Message() (domain.Message, bool) {
	return r.msg, r.ok
}

// candidate normalises the first provider candidate into an answer.
// Empty text becomes NoContentText and an empty role becomes assistant.
func candidate(role, content string) Reply {
	if content == "" {
		content = NoContentText
	}
	r := domain.Role(role)
	if r == "" {
		r = domain.RoleAssistant
	}
	return Answer(domain.Message{Role: r, Content: content})
}
