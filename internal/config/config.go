package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	LLM     LLMConfig
	Server  ServerConfig
	UI      UIConfig `mapstructure:"ui"`
	Relay   RelayConfig
	History HistoryConfig
	Log     LogConfig
}

// LLMConfig holds the inference backend configuration
type LLMConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float32       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
	// WaitTimeout bounds the startup readiness probe; zero skips it.
	WaitTimeout time.Duration `mapstructure:"wait_timeout"`
}

// ServerConfig holds the relay server configuration
type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           string   `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// UIConfig holds the interactive UI server configuration
type UIConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Greeting string `mapstructure:"greeting"`
}

// RelayConfig controls prompt assembly
type RelayConfig struct {
	SystemPrompt  string `mapstructure:"system_prompt"`
	PromptPreset  string `mapstructure:"prompt_preset"`
	HistoryWindow int    `mapstructure:"history_window"`
}

// HistoryConfig controls the optional sqlite transcript journal
type HistoryConfig struct {
	JournalPath string `mapstructure:"journal_path"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Addr returns the relay listen address.
func (s ServerConfig) Addr() string { return fmt.Sprintf("%s:%s", s.Host, s.Port) }

// Addr returns the UI listen address.
func (u UIConfig) Addr() string { return fmt.Sprintf("%s:%s", u.Host, u.Port) }

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.base_url", "http://localhost:11434/v1")
	v.SetDefault("llm.api_key", "ollama")
	v.SetDefault("llm.model", "deepseek-r1:1.5b")
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.timeout", time.Duration(0))
	v.SetDefault("llm.wait_timeout", time.Duration(0))

	v.SetDefault("server.host", "")
	v.SetDefault("server.port", "5000")
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("ui.enabled", true)
	v.SetDefault("ui.host", "")
	v.SetDefault("ui.port", "8501")
	v.SetDefault("ui.greeting", "Hi! I'm DeepSeek. How can I help you code today? 💻")

	v.SetDefault("relay.system_prompt", "")
	v.SetDefault("relay.prompt_preset", "structured")
	v.SetDefault("relay.history_window", 0)

	v.SetDefault("history.journal_path", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load loads the configuration from config.yaml (or the file named by
// CONFIG_PATH), layered over defaults and DEEPASSIST_* environment variables.
// A missing config file is not an error.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("DEEPASSIST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks that required fields are set.
func (c *Config) Validate() error {
	if c.LLM.BaseURL == "" {
		return errors.New("llm.base_url cannot be empty")
	}
	if c.LLM.Model == "" {
		return errors.New("llm.model cannot be empty")
	}
	if c.Server.Port == "" {
		return errors.New("server.port cannot be empty")
	}
	if c.UI.Enabled && c.UI.Port == "" {
		return errors.New("ui.port cannot be empty when the UI is enabled")
	}
	if c.Relay.HistoryWindow < 0 {
		return errors.New("relay.history_window must be >= 0")
	}
	return nil
}
