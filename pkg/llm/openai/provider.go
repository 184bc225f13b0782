package openai

import (
	"context"
	"errors"
	"fmt"

	"ai-assistant-be/pkg/llm"

	goopenai "github.com/sashabaranov/go-openai"
)

const defaultModel = goopenai.GPT4oMini

var ErrEmptyChoices = errors.New("openai: empty choices")

// OpenAIProvider talks to the OpenAI chat completions API or any server that
// speaks the same protocol (Hugging Face router, vLLM, LocalAI).
type OpenAIProvider struct {
	client *goopenai.Client
	model  string
}

// Ensure OpenAIProvider implements LLMProvider
var _ llm.LLMProvider = &OpenAIProvider{}

// NewOpenAIProvider builds a provider; an empty baseURL means api.openai.com.
func NewOpenAIProvider(apiKey, baseURL, model string) *OpenAIProvider {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return NewOpenAIProviderWithClient(goopenai.NewClientWithConfig(cfg), model)
}

func NewOpenAIProviderWithClient(client *goopenai.Client, model string) *OpenAIProvider {
	if model == "" {
		model = defaultModel
	}
	return &OpenAIProvider{client: client, model: model}
}

// Client exposes the underlying SDK client so media endpoints can share it.
func (p *OpenAIProvider) Client() *goopenai.Client {
	return p.client
}

func (p *OpenAIProvider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	opts := llm.Apply(llm.Options{Model: p.model, Temperature: 0.7}, options...)

	messages := make([]goopenai.ChatCompletionMessage, 0, len(history))
	for _, m := range history {
		role := m.Role
		switch role {
		case llm.RoleSystem, llm.RoleAssistant:
		case "model":
			role = llm.RoleAssistant
		default:
			role = llm.RoleUser
		}
		messages = append(messages, goopenai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	resp, err := p.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:       opts.Model,
		Messages:    messages,
		Temperature: float32(opts.Temperature),
		MaxTokens:   opts.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyChoices
	}

	return resp.Choices[0].Message.Content, nil
}

func (p *OpenAIProvider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, options...)
}
