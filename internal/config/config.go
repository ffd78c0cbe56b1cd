package config

import (
	"errors"
	"log/slog"

	"github.com/caarlos0/env/v9"
)

type Config struct {
	MessagesTable      string `env:"MESSAGES_TABLE" envDefault:"messages_by_conversation"`
	ConversationsTable string `env:"CONVERSATIONS_TABLE" envDefault:"conversations_by_user"`
	PointersTable      string `env:"CONVERSATION_POINTERS_TABLE" envDefault:"conversation_pointers_by_user"`

	// DynamoEndpoint overrides the regional endpoint, e.g. for DynamoDB Local.
	DynamoEndpoint string `env:"DYNAMODB_ENDPOINT"`
	// ParamPrefix enables runtime overrides from Parameter Store under
	// <prefix>/config. Empty disables the lookup.
	ParamPrefix string `env:"PARAM_PREFIX"`

	DefaultPageLimit int `env:"DEFAULT_PAGE_LIMIT" envDefault:"20"`
	MaxPageLimit     int `env:"MAX_PAGE_LIMIT" envDefault:"100"`
	MaxContentLength int `env:"MAX_CONTENT_LENGTH" envDefault:"4096"`

	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFrom reads the configuration from the given variables only.
func LoadFrom(environ map[string]string) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.MessagesTable == "" || c.ConversationsTable == "" || c.PointersTable == "" {
		return errors.New("config: table names must not be empty")
	}
	if c.DefaultPageLimit <= 0 || c.MaxPageLimit <= 0 {
		return errors.New("config: page limits must be positive")
	}
	if c.DefaultPageLimit > c.MaxPageLimit {
		return errors.New("config: DEFAULT_PAGE_LIMIT must not exceed MAX_PAGE_LIMIT")
	}
	if c.MaxContentLength <= 0 {
		return errors.New("config: MAX_CONTENT_LENGTH must be positive")
	}
	return nil
}
