package agent

import (
	"fmt"
	"log/slog"

	"github.com/ashureev/cgpt/internal/config"
)

// New constructs the Completer selected by cfg.Name.
func New(cfg config.ProviderConfig, logger *slog.Logger) (Completer, error) {
	switch cfg.Name {
	case config.ProviderOpenAI, "":
		return NewOpenAIClient(OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.Model,
		}, logger), nil
	case config.ProviderAnthropic:
		return NewAnthropicClient(AnthropicConfig{
			APIKey: cfg.AnthropicAPIKey,
			Model:  cfg.Model,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Name)
	}
}
