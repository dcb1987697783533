// Package openai implements chat, embedding, image, speech and transcription
// models for the OpenAI REST API and for services that mirror it.
package openai

import (
	"net/http"
	"strings"

	"github.com/germanamz/modelkit/pkg/model"
	"github.com/germanamz/modelkit/pkg/modeladapter"
	"github.com/germanamz/modelkit/pkg/modeladapter/usage"
)

// DefaultBaseURL is the base URL for the OpenAI API.
const DefaultBaseURL = "https://api.openai.com"

// Endpoint paths, relative to the base URL.
const (
	ChatPath          = "/v1/chat/completions"
	EmbeddingsPath    = "/v1/embeddings"
	ImagesPath        = "/v1/images/generations"
	SpeechPath        = "/v1/audio/speech"
	TranscriptionPath = "/v1/audio/transcriptions"
)

// NewAPI creates the REST client shared by the OpenAI models. An empty
// baseURL selects DefaultBaseURL; a nil client falls back to a client with
// modeladapter.DefaultTimeout.
func NewAPI(baseURL, apiKey string, client *http.Client) *modeladapter.ModelAdapter {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	a := modeladapter.New(strings.TrimRight(baseURL, "/"), modeladapter.Auth{Key: apiKey}, client)
	a.Name = "openai"
	a.HeaderParser = modeladapter.ParseOpenAIRateLimitHeaders

	return a
}

type apiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func (u apiUsage) toModel() model.Usage {
	total := u.TotalTokens
	if total == 0 {
		total = u.PromptTokens + u.CompletionTokens
	}

	return model.Usage{
		PromptTokens:     u.PromptTokens,
		GenerationTokens: u.CompletionTokens,
		TotalTokens:      total,
	}
}

// track records u against the adapter's usage tracker.
func track(api *modeladapter.ModelAdapter, modelName string, u model.Usage) {
	if u.IsZero() {
		return
	}

	api.Usage.Add(usage.TokenCount{
		Model:            modelName,
		PromptTokens:     u.PromptTokens,
		GenerationTokens: u.GenerationTokens,
	})
}
