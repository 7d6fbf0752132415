package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// CLIConfig holds the interactive client's configuration file values.
type CLIConfig struct {
	Provider  string
	APIKey    string
	Model     string
	BaseURL   string
	StorePath string
	LogLevel  string
	// TypingSpeed is the per-character delay used when printing replies to
	// a terminal. Zero prints replies at once.
	TypingSpeed time.Duration
}

// DefaultCLIConfigPath returns $HOME/.config/cgpt/config.yaml.
func DefaultCLIConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		dir = "."
	}
	return filepath.Join(dir, "cgpt", "config.yaml")
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, ".cgpt", "chats.bolt")
}

// CLIFlags registers the CLI flags on fs.
func CLIFlags(fs *pflag.FlagSet) {
	fs.String("config", DefaultCLIConfigPath(), "path to the config file")
	fs.String("provider", "", "chat provider (openai or anthropic)")
	fs.String("model", "", "model name override")
	fs.String("store-path", "", "path of the local conversation database")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.Duration("typing-speed", 0, "per-character delay when printing replies (0 disables)")
}

// LoadCLI reads the config file named by the --config flag (a missing file is
// not an error), then applies CGPT_* environment variables and explicit flags.
func LoadCLI(fs *pflag.FlagSet) (*CLIConfig, error) {
	v := viper.New()

	v.SetEnvPrefix("CGPT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("provider", ProviderOpenAI)
	v.SetDefault("store_path", defaultStorePath())
	v.SetDefault("log_level", "warn")

	path := DefaultCLIConfigPath()
	if fs != nil {
		if p, err := fs.GetString("config"); err == nil && p != "" {
			path = p
		}
		for flagName, key := range map[string]string{
			"provider":     "provider",
			"model":        "model",
			"store-path":   "store_path",
			"log-level":    "log_level",
			"typing-speed": "typing_speed",
		} {
			if f := fs.Lookup(flagName); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", flagName, err)
				}
			}
		}
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &CLIConfig{
		Provider:  strings.ToLower(v.GetString("provider")),
		APIKey:    v.GetString("api_key"),
		Model:     v.GetString("model"),
		BaseURL:   v.GetString("base_url"),
		StorePath: v.GetString("store_path"),
		LogLevel:  v.GetString("log_level"),

		TypingSpeed: v.GetDuration("typing_speed"),
	}
	if cfg.APIKey == "" {
		switch cfg.Provider {
		case ProviderAnthropic:
			cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		default:
			cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that all required configuration is present.
func (c *CLIConfig) Validate() error {
	var errs []string

	if c.Provider != ProviderOpenAI && c.Provider != ProviderAnthropic {
		errs = append(errs, fmt.Sprintf("invalid provider %q, must be 'openai' or 'anthropic'", c.Provider))
	}
	if c.APIKey == "" {
		errs = append(errs, "api_key is required (config file, CGPT_API_KEY or the provider's API key variable)")
	}
	if c.StorePath == "" {
		errs = append(errs, "store_path cannot be empty")
	}
	if c.TypingSpeed < 0 {
		errs = append(errs, "typing_speed cannot be negative")
	}

	if len(errs) > 0 {
		return errors.New("configuration errors:\n  - " + strings.Join(errs, "\n  - "))
	}
	return nil
}

// ProviderConfig converts the CLI settings into a ProviderConfig.
func (c *CLIConfig) ProviderConfig() ProviderConfig {
	p := ProviderConfig{Name: c.Provider, Model: c.Model}
	if c.Provider == ProviderAnthropic {
		p.AnthropicAPIKey = c.APIKey
	} else {
		p.OpenAIAPIKey = c.APIKey
		p.OpenAIBaseURL = c.BaseURL
	}
	return p
}
