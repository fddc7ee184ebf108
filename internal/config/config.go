// Package config provides centralized configuration management for the application.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ProviderOpenAI selects the chat-completions generation endpoint.
	ProviderOpenAI = "openai"
	// ProviderAnthropic selects the Anthropic messages API.
	ProviderAnthropic = "anthropic"

	defaultAIBaseURL        = "https://api.openai.com/v1"
	defaultAIModel          = "gpt-4o-mini"
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	defaultAnthropicModel   = "claude-sonnet-4-5"
	defaultListen           = "127.0.0.1:8765"
)

// Config holds all configuration parameters for the application.
type Config struct {
	AI     AIConfig
	Jira   JiraConfig
	Server ServerConfig
}

// AIConfig holds generation service configuration.
type AIConfig struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
}

// JiraConfig holds JIRA specific configuration.
type JiraConfig struct {
	URL   string
	Email string
	Token string
}

// ServerConfig holds the local HTTP API configuration.
type ServerConfig struct {
	Listen string
}

// ConfigurationError reports required settings that are missing.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("missing required configuration: %s", strings.Join(e.Missing, ", "))
}

// IsConfigurationError reports whether err is, or wraps, a *ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// LoadConfig reads configuration from the environment and an optional YAML file.
// An empty path looks for $HOME/.subtasker.yaml and silently skips it when absent.
// The returned configuration has not been validated; call Validate before any
// network call is attempted.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("ai.provider", ProviderOpenAI)
	v.SetDefault("server.listen", defaultListen)

	// Map specific environment variables
	v.BindEnv("ai.api_key", "AI_API_KEY")
	v.BindEnv("ai.openai_api_key", "OPENAI_API_KEY")
	v.BindEnv("ai.anthropic_api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("ai.provider", "AI_PROVIDER")
	v.BindEnv("ai.model", "AI_MODEL")
	v.BindEnv("ai.base_url", "AI_BASE_URL")
	v.BindEnv("jira.url", "JIRA_URL")
	v.BindEnv("jira.email", "JIRA_EMAIL")
	v.BindEnv("jira.token", "JIRA_API_TOKEN")
	v.BindEnv("server.listen", "SUBTASKER_LISTEN")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else if home, err := os.UserHomeDir(); err == nil {
		candidate := filepath.Join(home, ".subtasker.yaml")
		if _, statErr := os.Stat(candidate); statErr == nil {
			v.SetConfigFile(candidate)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file %s: %w", candidate, err)
			}
		}
	}

	config := &Config{
		AI: AIConfig{
			Provider: strings.ToLower(v.GetString("ai.provider")),
			APIKey:   v.GetString("ai.api_key"),
			Model:    v.GetString("ai.model"),
			BaseURL:  strings.TrimRight(v.GetString("ai.base_url"), "/"),
		},
		Jira: JiraConfig{
			URL:   strings.TrimRight(v.GetString("jira.url"), "/"),
			Email: v.GetString("jira.email"),
			Token: v.GetString("jira.token"),
		},
		Server: ServerConfig{
			Listen: v.GetString("server.listen"),
		},
	}

	// The provider's own key variable wins over the generic one.
	if key := v.GetString("ai." + strings.ToLower(APIKeyEnv(config.AI.Provider))); key != "" {
		config.AI.APIKey = key
	}
	applyProviderDefaults(&config.AI)

	return config, nil
}

// applyProviderDefaults fills the model and endpoint for the selected provider
// when neither the environment nor the file set them.
func applyProviderDefaults(ai *AIConfig) {
	model, baseURL := defaultAIModel, defaultAIBaseURL
	if ai.Provider == ProviderAnthropic {
		model, baseURL = defaultAnthropicModel, defaultAnthropicBaseURL
	}
	if ai.Model == "" {
		ai.Model = model
	}
	if ai.BaseURL == "" {
		ai.BaseURL = baseURL
	}
}

// APIKeyEnv names the environment variable holding the key for provider.
func APIKeyEnv(provider string) string {
	if provider == ProviderAnthropic {
		return "ANTHROPIC_API_KEY"
	}
	return "OPENAI_API_KEY"
}

// Validate ensures that the four required values are present. The missing API
// key is reported under the selected provider's variable.
func (c *Config) Validate() error {
	var missingVars []string

	if c.AI.APIKey == "" {
		missingVars = append(missingVars, APIKeyEnv(c.AI.Provider))
	}
	if c.Jira.URL == "" {
		missingVars = append(missingVars, "JIRA_URL")
	}
	if c.Jira.Email == "" {
		missingVars = append(missingVars, "JIRA_EMAIL")
	}
	if c.Jira.Token == "" {
		missingVars = append(missingVars, "JIRA_API_TOKEN")
	}

	if len(missingVars) > 0 {
		return &ConfigurationError{Missing: missingVars}
	}

	switch c.AI.Provider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("unsupported ai provider %q", c.AI.Provider)
	}

	return nil
}

// ValidateJiraConfig validates only the tracker settings, for commands that never
// call the generation service.
func (c *Config) ValidateJiraConfig() error {
	var missingVars []string

	if c.Jira.URL == "" {
		missingVars = append(missingVars, "JIRA_URL")
	}
	if c.Jira.Email == "" {
		missingVars = append(missingVars, "JIRA_EMAIL")
	}
	if c.Jira.Token == "" {
		missingVars = append(missingVars, "JIRA_API_TOKEN")
	}

	if len(missingVars) > 0 {
		return &ConfigurationError{Missing: missingVars}
	}
	return nil
}
