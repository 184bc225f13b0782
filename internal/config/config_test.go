package config

import (
	"testing"
	"time"

	"ai-assistant-be/pkg/enrich"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 800, cfg.Retry.BaseDelayMs)
	assert.True(t, cfg.Assistant.FallbackEnabled)

	p := cfg.RetryPolicy()
	assert.Equal(t, 800*time.Millisecond, p.BaseDelay)
	assert.Equal(t, time.Minute, p.AttemptTimeout)
	require.NoError(t, p.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("RETRY_MAX_ATTEMPTS", "5")
	t.Setenv("RETRY_BACKOFF_MULTIPLIER", "1.5")
	t.Setenv("EMOJI_LEVEL", "MORE")
	t.Setenv("FALLBACK_ENABLED", "false")
	t.Setenv("LLM_PROVIDER", "ollama")

	cfg := Load()
	require.NoError(t, cfg.Validate())

	gen := cfg.GenerationConfig("ctx-7")
	assert.Equal(t, "ctx-7", gen.ContextID)
	assert.Equal(t, 5, gen.Policy.MaxAttempts)
	assert.InDelta(t, 1.5, gen.Policy.BackoffMultiplier, 1e-9)
	assert.Equal(t, enrich.EmojiMore, gen.EmojiLevel)
	assert.False(t, gen.FallbackEnabled)
	assert.Equal(t, "http://localhost:11434", cfg.LLMBaseURL())
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Setenv("RETRY_MAX_ATTEMPTS", "0")
	assert.Error(t, Load().Validate())

	t.Setenv("RETRY_MAX_ATTEMPTS", "3")
	t.Setenv("RESPONSE_STYLE", "verbose")
	assert.Error(t, Load().Validate())

	t.Setenv("RESPONSE_STYLE", "balanced")
	t.Setenv("LLM_PROVIDER", "skynet")
	assert.Error(t, Load().Validate())
}

func TestLLMAPIKey(t *testing.T) {
	cfg := &Config{Ai: AIConfig{LLMProvider: "gemini", GeminiKey: "g", OpenAIKey: "o"}}
	assert.Equal(t, "g", cfg.LLMAPIKey())

	cfg.Ai.LLMProvider = "openai"
	assert.Equal(t, "o", cfg.LLMAPIKey())
}
