package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ashureev/cgpt/internal/domain"
)

// AnthropicClient sends chat completions to the Anthropic Messages API.
type AnthropicClient struct {
	client anthropic.Client
	model  string
	logger *slog.Logger
}

// AnthropicConfig holds configuration for the Anthropic client.
type AnthropicConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// NewAnthropicClient creates a new Anthropic chat client. SDK retries are
// disabled so a failed call surfaces immediately.
func NewAnthropicClient(cfg AnthropicConfig, logger *slog.Logger) *AnthropicClient {
	if logger == nil {
		logger = slog.Default()
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = DefaultAnthropicModel
	}
	return &AnthropicClient{
		client: anthropic.NewClient(opts...),
		model:  model,
		logger: logger,
	}
}

// Name returns "anthropic".
func (c *AnthropicClient) Name() string { return "anthropic" }

// Complete sends the conversation and returns the text of the reply.
// System messages travel in the request's System field.
func (c *AnthropicClient) Complete(ctx context.Context, messages []domain.Message) (Reply, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: MaxTokens,
	}
	for _, m := range messages {
		switch m.Role {
		case domain.RoleSystem:
			params.System = append(params.System, anthropic.TextBlockParam{Text: m.Content})
		case domain.RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	c.logger.Debug("Sending chat completion", "provider", c.Name(), "model", c.model, "messages", len(messages))

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return NoReply(), fmt.Errorf("anthropic messages: %w", err)
	}
	if len(resp.Content) == 0 {
		c.logger.Warn("Messages API returned no content blocks", "provider", c.Name(), "model", c.model)
		return NoReply(), nil
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return candidate(string(resp.Role), text.String()), nil
}
