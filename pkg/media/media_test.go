package media

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(url string) *openai.Client {
	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = url + "/v1"
	return openai.NewClientWithConfig(cfg)
}

func TestGenerateImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/images/generations", r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "a red fox in snow", req["prompt"])
		assert.Equal(t, "dall-e-3", req["model"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"created":1,"data":[{"url":"https://cdn.example.com/fox.png","revised_prompt":"a red fox standing in snow"}]}`))
	}))
	defer srv.Close()

	img, err := NewOpenAIImages(newClient(srv.URL), "", "").GenerateImage(context.Background(), "a red fox in snow")

	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/fox.png", img.URL)
	assert.Equal(t, "a red fox standing in snow", img.RevisedPrompt)
}

func TestGenerateImageEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"created":1,"data":[]}`))
	}))
	defer srv.Close()

	_, err := NewOpenAIImages(newClient(srv.URL), "", "").GenerateImage(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNoImage)
}

func TestSynthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/speech", r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "alloy", req["voice"])
		assert.Equal(t, "tts-1", req["model"])

		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3-fake-mp3"))
	}))
	defer srv.Close()

	speech, err := NewOpenAISpeech(newClient(srv.URL), "").Synthesize(context.Background(), "Welcome to the show.", "")

	require.NoError(t, err)
	assert.Equal(t, []byte("ID3-fake-mp3"), speech.Data)
	assert.Equal(t, "audio/mpeg", speech.ContentType)
}
