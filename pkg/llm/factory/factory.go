package factory

import (
	"context"
	"fmt"

	"ai-assistant-be/pkg/llm"
	"ai-assistant-be/pkg/llm/gemini"
	"ai-assistant-be/pkg/llm/ollama"
	"ai-assistant-be/pkg/llm/openai"
)

const (
	ProviderOpenAI      = "openai"
	ProviderHuggingFace = "huggingface"
	ProviderGemini      = "gemini"
	ProviderOllama      = "ollama"

	huggingFaceRouterURL = "https://router.huggingface.co/v1"
)

// ProviderConfig carries everything any provider may need.
type ProviderConfig struct {
	Type    string
	Model   string
	BaseURL string
	APIKey  string
}

func NewLLMProvider(ctx context.Context, cfg ProviderConfig) (llm.LLMProvider, error) {
	switch cfg.Type {
	case ProviderOpenAI, "":
		return openai.NewOpenAIProvider(cfg.APIKey, cfg.BaseURL, cfg.Model), nil
	case ProviderHuggingFace:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = huggingFaceRouterURL
		}
		return openai.NewOpenAIProvider(cfg.APIKey, baseURL, cfg.Model), nil
	case ProviderGemini:
		return gemini.NewGeminiProvider(ctx, cfg.APIKey, cfg.Model)
	case ProviderOllama:
		return ollama.NewOllamaProvider(cfg.BaseURL, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Type)
	}
}
