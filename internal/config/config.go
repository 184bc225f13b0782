package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"ai-assistant-be/pkg/enrich"
	"ai-assistant-be/pkg/generation"
	"ai-assistant-be/pkg/resilient"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Ai        AIConfig
	Retry     RetryConfig
	Assistant AssistantConfig
}

type AppConfig struct {
	Port               string `validate:"required,numeric"`
	Environment        string `validate:"oneof=development production test"`
	LogFilePath        string `validate:"required"`
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	ContextTTL         time.Duration `validate:"gt=0"`
}

type DatabaseConfig struct {
	// Empty means conversations are never persisted.
	Connection string
}

type AuthConfig struct {
	JWTSecret string
}

type AIConfig struct {
	LLMProvider   string `validate:"oneof=openai huggingface gemini ollama"`
	LLMModel      string
	LLMBaseURL    string
	OpenAIKey     string
	GeminiKey     string
	HuggingFace   string
	OllamaBaseURL string
	ImageModel    string
	SpeechModel   string
}

type RetryConfig struct {
	MaxAttempts       int     `validate:"gte=1"`
	BaseDelayMs       int     `validate:"gte=0"`
	BackoffMultiplier float64 `validate:"gte=1"`
	AttemptTimeoutMs  int     `validate:"gte=0"`
}

type AssistantConfig struct {
	EmojiLevel          string `validate:"oneof=less default more"`
	ResponseStyle       string `validate:"oneof=concise balanced detailed"`
	TTSVoice            string `validate:"required"`
	FallbackEnabled     bool
	FallbackRepliesFile string
	HistoryWindow       int `validate:"gte=0"`
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "assistant.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
			ContextTTL:         time.Duration(getEnvAsInt("CONTEXT_TTL_MINUTES", 60)) * time.Minute,
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Ai: AIConfig{
			LLMProvider:   strings.ToLower(getEnv("LLM_PROVIDER", "openai")),
			LLMModel:      getEnv("LLM_MODEL", ""),
			LLMBaseURL:    getEnv("LLM_BASE_URL", ""),
			OpenAIKey:     getEnv("OPENAI_API_KEY", ""),
			GeminiKey:     getEnv("GOOGLE_GEMINI_API_KEY", ""),
			HuggingFace:   getEnv("HUGGINGFACE_API_KEY", ""),
			OllamaBaseURL: getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			ImageModel:    getEnv("IMAGE_MODEL", ""),
			SpeechModel:   getEnv("SPEECH_MODEL", ""),
		},
		Retry: RetryConfig{
			MaxAttempts:       getEnvAsInt("RETRY_MAX_ATTEMPTS", 3),
			BaseDelayMs:       getEnvAsInt("RETRY_BASE_DELAY_MS", 800),
			BackoffMultiplier: getEnvAsFloat("RETRY_BACKOFF_MULTIPLIER", 2),
			AttemptTimeoutMs:  getEnvAsInt("RETRY_ATTEMPT_TIMEOUT_MS", 60000),
		},
		Assistant: AssistantConfig{
			EmojiLevel:          strings.ToLower(getEnv("EMOJI_LEVEL", "default")),
			ResponseStyle:       strings.ToLower(getEnv("RESPONSE_STYLE", "balanced")),
			TTSVoice:            getEnv("TTS_VOICE", "alloy"),
			FallbackEnabled:     getEnvAsBool("FALLBACK_ENABLED", true),
			FallbackRepliesFile: getEnv("FALLBACK_REPLIES_FILE", ""),
			HistoryWindow:       getEnvAsInt("HISTORY_WINDOW", 20),
		},
	}
}

var validate = validator.New()

// Validate checks every section against its struct tags.
func (c *Config) Validate() error {
	for name, section := range map[string]any{
		"app":       c.App,
		"ai":        c.Ai,
		"retry":     c.Retry,
		"assistant": c.Assistant,
	} {
		if err := validate.Struct(section); err != nil {
			return fmt.Errorf("invalid %s config: %w", name, err)
		}
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// RetryPolicy converts the retry section into an invoker policy.
func (c *Config) RetryPolicy() resilient.Policy {
	return resilient.Policy{
		MaxAttempts:       c.Retry.MaxAttempts,
		BaseDelay:         time.Duration(c.Retry.BaseDelayMs) * time.Millisecond,
		BackoffMultiplier: c.Retry.BackoffMultiplier,
		AttemptTimeout:    time.Duration(c.Retry.AttemptTimeoutMs) * time.Millisecond,
	}
}

// GenerationConfig builds the per-context controller settings.
func (c *Config) GenerationConfig(contextID string) generation.Config {
	return generation.Config{
		ContextID:       contextID,
		Policy:          c.RetryPolicy(),
		EmojiLevel:      enrich.ParseEmojiLevel(c.Assistant.EmojiLevel),
		ResponseStyle:   c.Assistant.ResponseStyle,
		Voice:           c.Assistant.TTSVoice,
		FallbackEnabled: c.Assistant.FallbackEnabled,
		HistoryWindow:   c.Assistant.HistoryWindow,
	}
}

// LLMAPIKey returns the key matching the selected provider.
func (c *Config) LLMAPIKey() string {
	switch c.Ai.LLMProvider {
	case "gemini":
		return c.Ai.GeminiKey
	case "huggingface":
		return c.Ai.HuggingFace
	default:
		return c.Ai.OpenAIKey
	}
}

// LLMBaseURL returns the endpoint override for the selected provider.
func (c *Config) LLMBaseURL() string {
	if c.Ai.LLMProvider == "ollama" && c.Ai.LLMBaseURL == "" {
		return c.Ai.OllamaBaseURL
	}
	return c.Ai.LLMBaseURL
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}
