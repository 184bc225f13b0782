// Package media wraps the OpenAI image and speech endpoints.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sashabaranov/go-openai"
)

var ErrNoImage = errors.New("media: no image returned")

// GeneratedImage is a hosted image produced from a prompt.
type GeneratedImage struct {
	URL           string
	RevisedPrompt string
}

// Speech is synthesized audio.
type Speech struct {
	Data        []byte
	ContentType string
	Format      string
}

type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (GeneratedImage, error)
}

type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text, voice string) (Speech, error)
}

// OpenAIImages generates images through the images API.
type OpenAIImages struct {
	client *openai.Client
	model  string
	size   string
}

var _ ImageGenerator = &OpenAIImages{}

func NewOpenAIImages(client *openai.Client, model, size string) *OpenAIImages {
	if model == "" {
		model = openai.CreateImageModelDallE3
	}
	if size == "" {
		size = openai.CreateImageSize1024x1024
	}
	return &OpenAIImages{client: client, model: model, size: size}
}

func (g *OpenAIImages) GenerateImage(ctx context.Context, prompt string) (GeneratedImage, error) {
	resp, err := g.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          g.model,
		N:              1,
		Size:           g.size,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err != nil {
		return GeneratedImage{}, fmt.Errorf("create image: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return GeneratedImage{}, ErrNoImage
	}
	return GeneratedImage{URL: resp.Data[0].URL, RevisedPrompt: resp.Data[0].RevisedPrompt}, nil
}

// OpenAISpeech synthesizes MP3 audio through the speech API.
type OpenAISpeech struct {
	client *openai.Client
	model  openai.SpeechModel
}

var _ SpeechSynthesizer = &OpenAISpeech{}

func NewOpenAISpeech(client *openai.Client, model string) *OpenAISpeech {
	m := openai.TTSModel1
	if model != "" {
		m = openai.SpeechModel(model)
	}
	return &OpenAISpeech{client: client, model: m}
}

func (s *OpenAISpeech) Synthesize(ctx context.Context, text, voice string) (Speech, error) {
	if voice == "" {
		voice = string(openai.VoiceAlloy)
	}

	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          s.model,
		Input:          text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return Speech{}, fmt.Errorf("create speech: %w", err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return Speech{}, fmt.Errorf("read speech: %w", err)
	}
	return Speech{Data: data, ContentType: "audio/mpeg", Format: string(openai.SpeechResponseFormatMp3)}, nil
}
