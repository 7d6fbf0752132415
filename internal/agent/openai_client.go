package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ashureev/cgpt/internal/domain"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient sends chat completions to the OpenAI API or a compatible endpoint.
type OpenAIClient struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// OpenAIConfig holds configuration for the OpenAI client.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// NewOpenAIClient creates a new OpenAI chat client.
func NewOpenAIClient(cfg OpenAIConfig, logger *slog.Logger) *OpenAIClient {
	if logger == nil {
		logger = slog.Default()
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
		logger: logger,
	}
}

// Name returns "openai".
func (c *OpenAIClient) Name() string { return "openai" }

// Complete sends the conversation and returns the first choice.
func (c *OpenAIClient) Complete(ctx context.Context, messages []domain.Message) (Reply, error) {
	req := openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: MaxTokens,
		Messages:  make([]openai.ChatCompletionMessage, len(messages)),
	}
	for i, m := range messages {
		req.Messages[i] = openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		}
	}

	c.logger.Debug("Sending chat completion", "provider", c.Name(), "model", c.model, "messages", len(messages))

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return NoReply(), fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		c.logger.Warn("Chat completion returned no choices", "provider", c.Name(), "model", c.model)
		return NoReply(), nil
	}

	msg := resp.Choices[0].Message
	return candidate(msg.Role, msg.Content), nil
}
