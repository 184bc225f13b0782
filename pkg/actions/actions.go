// Package actions implements the remote collaborators a generation session
// dispatches to: chat, image, document, podcast script and speech.
package actions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"ai-assistant-be/pkg/intent"
	"ai-assistant-be/pkg/llm"
	"ai-assistant-be/pkg/media"

	"go.uber.org/zap"
)

const (
	StyleConcise  = "concise"
	StyleBalanced = "balanced"
	StyleDetailed = "detailed"

	defaultHistoryLimit = 20
	maxSlugLength       = 50
)

var (
	ErrNoImageGenerator = errors.New("actions: image generation is not configured")
	ErrNoSpeech         = errors.New("actions: text to speech is not configured")
	ErrEmptyContent     = errors.New("actions: provider returned empty content")
)

type ChatRequest struct {
	// ConversationID is empty for ephemeral conversations.
	ConversationID string
	Text           string
	Style          string
	History        []llm.Message
}

type ChatReply struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type Image struct {
	URL      string `json:"image_url"`
	Filename string `json:"filename"`
	Prompt   string `json:"prompt,omitempty"`
}

type Document struct {
	Format   intent.DocumentFormat `json:"format"`
	Text     string                `json:"text"`
	Filename string                `json:"filename"`
}

type Audio struct {
	Data        []byte `json:"-"`
	ContentType string `json:"content_type"`
	Filename    string `json:"filename"`
	Voice       string `json:"voice"`
}

// HistoryLoader returns stored messages of a durable conversation, oldest
// first.
type HistoryLoader interface {
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]llm.Message, error)
}

// RemoteActions routes each action to the configured provider.
type RemoteActions struct {
	chat    llm.LLMProvider
	images  media.ImageGenerator
	speech  media.SpeechSynthesizer
	history HistoryLoader
	logger  *zap.Logger
}

type Option func(*RemoteActions)

func WithImageGenerator(g media.ImageGenerator) Option {
	return func(a *RemoteActions) { a.images = g }
}

func WithSpeech(s media.SpeechSynthesizer) Option {
	return func(a *RemoteActions) { a.speech = s }
}

func WithHistoryLoader(h HistoryLoader) Option {
	return func(a *RemoteActions) { a.history = h }
}

func WithLogger(logger *zap.Logger) Option {
	return func(a *RemoteActions) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func New(chat llm.LLMProvider, opts ...Option) *RemoteActions {
	a := &RemoteActions{chat: chat, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *RemoteActions) SendChat(ctx context.Context, req ChatRequest) (ChatReply, error) {
	messages := []llm.Message{{Role: llm.RoleSystem, Content: stylePrompt(req.Style)}}

	history := req.History
	if req.ConversationID != "" && a.history != nil {
		stored, err := a.history.RecentMessages(ctx, req.ConversationID, defaultHistoryLimit)
		if err != nil {
			// Answer without context rather than fail the turn
			a.logger.Warn("load conversation history failed",
				zap.String("conversation_id", req.ConversationID),
				zap.Error(err))
		} else {
			history = stored
		}
	}
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: req.Text})

	content, err := a.chat.Chat(ctx, messages)
	if err != nil {
		return ChatReply{}, err
	}
	if strings.TrimSpace(content) == "" {
		return ChatReply{}, ErrEmptyContent
	}

	return ChatReply{
		Content: content,
		Metadata: map[string]any{
			"style":           normalizeStyle(req.Style),
			"history_entries": len(history),
		},
	}, nil
}

func (a *RemoteActions) GenerateImage(ctx context.Context, prompt string) (Image, error) {
	if a.images == nil {
		return Image{}, ErrNoImageGenerator
	}
	img, err := a.images.GenerateImage(ctx, prompt)
	if err != nil {
		return Image{}, err
	}
	return Image{URL: img.URL, Filename: Slug(prompt) + ".png", Prompt: img.RevisedPrompt}, nil
}

func (a *RemoteActions) GenerateDocumentContent(ctx context.Context, format intent.DocumentFormat, topic string) (Document, error) {
	prompt := fmt.Sprintf(`Write a well-structured document about: %s

Use a level-1 heading for the title, level-2 headings for sections, short
paragraphs and bullet lists where they help. Do not add any commentary before
or after the document.`, topic)

	text, err := a.chat.Generate(ctx, prompt)
	if err != nil {
		return Document{}, err
	}
	if strings.TrimSpace(text) == "" {
		return Document{}, ErrEmptyContent
	}
	return Document{Format: format, Text: text, Filename: Slug(topic) + "." + string(format)}, nil
}

func (a *RemoteActions) GenerateScript(ctx context.Context, topic string) (string, error) {
	prompt := fmt.Sprintf(`Write the narration script for a short single-host podcast episode about: %s

Plain spoken prose only, no stage directions, no speaker labels, around 300 words.`, topic)

	script, err := a.chat.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(script) == "" {
		return "", ErrEmptyContent
	}
	return script, nil
}

func (a *RemoteActions) TextToSpeech(ctx context.Context, text, voice string) (Audio, error) {
	if a.speech == nil {
		return Audio{}, ErrNoSpeech
	}
	speech, err := a.speech.Synthesize(ctx, text, voice)
	if err != nil {
		return Audio{}, err
	}
	return Audio{
		Data:        speech.Data,
		ContentType: speech.ContentType,
		Filename:    Slug(firstWords(text, 6)) + "." + speech.Format,
		Voice:       voice,
	}, nil
}

func normalizeStyle(style string) string {
	switch strings.ToLower(strings.TrimSpace(style)) {
	case StyleConcise:
		return StyleConcise
	case StyleDetailed:
		return StyleDetailed
	default:
		return StyleBalanced
	}
}

func stylePrompt(style string) string {
	base := "You are a friendly, helpful assistant. Use light markdown (headings, lists, **bold**) when it improves readability."
	switch normalizeStyle(style) {
	case StyleConcise:
		return base + " Keep answers short: a few sentences at most."
	case StyleDetailed:
		return base + " Give thorough, well-organized answers with examples."
	default:
		return base + " Balance brevity and detail."
	}
}

// Slug turns free text into a lowercase, dash-separated file name stem.
func Slug(s string) string {
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
			dash = false
			continue
		}
		if !dash && sb.Len() > 0 {
			sb.WriteByte('-')
			dash = true
		}
	}
	out := strings.Trim(sb.String(), "-")
	if runes := []rune(out); len(runes) > maxSlugLength {
		out = strings.Trim(string(runes[:maxSlugLength]), "-")
	}
	if out == "" {
		return "untitled"
	}
	return out
}

func firstWords(s string, n int) string {
	fields := strings.Fields(s)
	if len(fields) > n {
		fields = fields[:n]
	}
	return strings.Join(fields, " ")
}
