// Package config manages application configuration from environment variables,
// config files, and default values.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config defines the configuration for both the tutor server and the terminal
// client. Values can be set via environment variables prefixed with TUTOR_
// (e.g., TUTOR_GEMINI_API_KEY) or through config.yaml.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Server    ServerConfig    `mapstructure:"server"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Chat      ChatConfig      `mapstructure:"chat"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Client    ClientConfig    `mapstructure:"client"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// LogConfig controls structured logging output.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr           string   `mapstructure:"addr" validate:"required"`
	Env            string   `mapstructure:"env"  validate:"required,oneof=development production"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// GeminiConfig controls the hosted model integration. APIKey is required:
// the process refuses to start without it.
type GeminiConfig struct {
	APIKey      string        `mapstructure:"api_key"     validate:"required"`
	Model       string        `mapstructure:"model"       validate:"required"`
	Temperature float32       `mapstructure:"temperature" validate:"min=0,max=2"`
	MaxTokens   int32         `mapstructure:"max_tokens"  validate:"min=1"`
	Instruction string        `mapstructure:"instruction" validate:"required"`
	MaxRetries  int           `mapstructure:"max_retries" validate:"min=0"`
	RetryDelay  time.Duration `mapstructure:"retry_delay" validate:"min=0"`
}

// RateLimitConfig controls the per-client request counter in front of /chat.
type RateLimitConfig struct {
	Window      time.Duration `mapstructure:"window"       validate:"required,min=1s"`
	MaxRequests int           `mapstructure:"max_requests" validate:"required,min=1"`
}

// ChatConfig controls the message pipeline.
type ChatConfig struct {
	MaxMessageLength int `mapstructure:"max_message_length" validate:"required,min=1"`
	HistoryLimit     int `mapstructure:"history_limit"      validate:"required,min=1"`
	MaxStored        int `mapstructure:"max_stored"         validate:"required,min=1"`
	MinInteractions  int `mapstructure:"min_interactions"   validate:"required,min=1"`
	AssessEvery      int `mapstructure:"assess_every"       validate:"required,min=1"`
}

// StorageConfig controls the local cache store.
type StorageConfig struct {
	Path       string        `mapstructure:"path"        validate:"required"`
	QuotaBytes int           `mapstructure:"quota_bytes" validate:"required,min=1024"`
	Debounce   time.Duration `mapstructure:"debounce"    validate:"min=0"`
}

// ClientConfig controls the terminal client.
type ClientConfig struct {
	ServerURL string `mapstructure:"server_url" validate:"required,url"`
	Mode      string `mapstructure:"mode"       validate:"required,oneof=free_talk scenario grammar_focus pronunciation vocabulary"`
}

// SchedulerConfig holds cron expressions for background maintenance.
type SchedulerConfig struct {
	Maintenance string `mapstructure:"maintenance"`
}

// Load reads configuration in order of precedence: defaults, then an optional
// config.yaml in the working directory, then TUTOR_* environment variables.
// The resulting config is validated before being returned.
func Load() (*Config, error) {
	setDefaults()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("TUTOR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file is optional, defaults and env vars carry the rest.
	}

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}
