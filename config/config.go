package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// EmbeddingsInputType selects what the embedding worker feeds the
// embedding service for an uploaded file.
type EmbeddingsInputType string

const (
	// InputTypeInline sends the file content itself.
	InputTypeInline EmbeddingsInputType = "inline"
	// InputTypeFilePath sends the storage path as the text to embed.
	InputTypeFilePath EmbeddingsInputType = "file-path"
)

// Config is the process-wide configuration, read from the environment once
// at startup and passed explicitly into constructors.
type Config struct {
	// Storage
	FileSharePath string `env:"FILE_SHARE_PATH" envDefault:"./data/files"`
	DBPath        string `env:"DB_PATH" envDefault:"./data/db"`

	// AI services
	AIHost              string              `env:"AI_HOST" envDefault:"http://localhost:11434/v1"`
	AIToken             string              `env:"AI_TOKEN" envDefault:"none"`
	EmbeddingModel      string              `env:"EMBEDDING_MODEL_DEPLOYMENT_NAME" envDefault:"embeddinggemma"`
	ChatModel           string              `env:"CHAT_MODEL_DEPLOYMENT_NAME" envDefault:"qwen2.5:3b"`
	SystemPrompt        string              `env:"SYSTEM_PROMPT" envDefault:"You are a helpful assistant. Answer questions using only the provided context. If the context does not contain the answer, say that you don't know."`
	EmbeddingsInputType EmbeddingsInputType `env:"EMBEDDINGS_INPUT_TYPE" envDefault:"inline"`

	// Queue
	QueuePollInterval time.Duration `env:"QUEUE_POLL_INTERVAL" envDefault:"250ms"`
	QueueMaxAttempts  int           `env:"QUEUE_MAX_ATTEMPTS" envDefault:"5"`
	QueueRetryDelay   time.Duration `env:"QUEUE_RETRY_DELAY" envDefault:"1s"`

	// HTTP server
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is complete and consistent.
func (c *Config) Validate() error {
	if c.FileSharePath == "" {
		return fmt.Errorf("config: FILE_SHARE_PATH is required")
	}
	if c.DBPath == "" {
		return fmt.Errorf("config: DB_PATH is required")
	}
	switch c.EmbeddingsInputType {
	case InputTypeInline, InputTypeFilePath:
	default:
		return fmt.Errorf("config: EMBEDDINGS_INPUT_TYPE must be %q or %q, got %q",
			InputTypeInline, InputTypeFilePath, c.EmbeddingsInputType)
	}
	return nil
}
