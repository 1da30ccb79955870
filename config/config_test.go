package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "./data/files", cfg.FileSharePath)
	assert.Equal(t, "./data/db", cfg.DBPath)
	assert.Equal(t, "http://localhost:11434/v1", cfg.AIHost)
	assert.Equal(t, "none", cfg.AIToken)
	assert.Equal(t, "embeddinggemma", cfg.EmbeddingModel)
	assert.Equal(t, "qwen2.5:3b", cfg.ChatModel)
	assert.Equal(t, InputTypeInline, cfg.EmbeddingsInputType)
	assert.Equal(t, 250*time.Millisecond, cfg.QueuePollInterval)
	assert.Equal(t, 5, cfg.QueueMaxAttempts)
	assert.Equal(t, time.Second, cfg.QueueRetryDelay)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.NotEmpty(t, cfg.SystemPrompt)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FILE_SHARE_PATH", "/var/lib/docqa/files")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("EMBEDDINGS_INPUT_TYPE", "file-path")
	t.Setenv("QUEUE_MAX_ATTEMPTS", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/docqa/files", cfg.FileSharePath)
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, InputTypeFilePath, cfg.EmbeddingsInputType)
	assert.Equal(t, 3, cfg.QueueMaxAttempts)
}

func TestLoad_InvalidInputType(t *testing.T) {
	t.Setenv("EMBEDDINGS_INPUT_TYPE", "carrier-pigeon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EMBEDDINGS_INPUT_TYPE")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			FileSharePath:       "./files",
			DBPath:              "./db",
			EmbeddingsInputType: InputTypeInline,
		}
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("missing file share path", func(t *testing.T) {
		cfg := valid()
		cfg.FileSharePath = ""
		assert.ErrorContains(t, cfg.Validate(), "FILE_SHARE_PATH")
	})

	t.Run("missing db path", func(t *testing.T) {
		cfg := valid()
		cfg.DBPath = ""
		assert.ErrorContains(t, cfg.Validate(), "DB_PATH")
	})

	t.Run("bad input type", func(t *testing.T) {
		cfg := valid()
		cfg.EmbeddingsInputType = "smoke-signal"
		assert.ErrorContains(t, cfg.Validate(), "EMBEDDINGS_INPUT_TYPE")
	})
}
