package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, "http://localhost:6333", cfg.Qdrant.BaseURL)
	assert.Equal(t, "session_documents", cfg.Qdrant.Collection)
	assert.Equal(t, "http://localhost:11434", cfg.Ollama.BaseURL)
	assert.Equal(t, 60*time.Second, cfg.Ollama.Timeout)
	assert.Equal(t, 5, cfg.Engine.TopK)
	assert.Equal(t, "Russian", cfg.Engine.TargetLanguage)
	assert.Equal(t, "info", cfg.Log.Level)
}
