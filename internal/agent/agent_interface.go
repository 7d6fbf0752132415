package agent

import (
	"context"

	"github.com/ashureev/cgpt/internal/domain"
)

// Completer defines the chat-completion gateway.
// It is implemented by the OpenAI and Anthropic clients.
type Completer interface {
	// Complete sends the ordered message list and returns the first candidate.
	// Provider failures are returned as errors; an empty candidate list is NoReply.
	Complete(ctx context.Context, messages []domain.Message) (Reply, error)

	// Name identifies the provider in logs.
	Name() string
}

// Ensure both clients implement Completer.
var (
	_ Completer = (*OpenAIClient)(nil)
	_ Completer = (*AnthropicClient)(nil)
)
