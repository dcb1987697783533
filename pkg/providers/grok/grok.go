// Package grok configures xAI's Grok models on top of the OpenAI-compatible
// adapters.
package grok

import (
	"net/http"
	"strings"

	"github.com/germanamz/modelkit/pkg/chat"
	"github.com/germanamz/modelkit/pkg/embedding"
	"github.com/germanamz/modelkit/pkg/image"
	"github.com/germanamz/modelkit/pkg/modeladapter"
	"github.com/germanamz/modelkit/pkg/providers/openai"
)

// DefaultBaseURL is the base URL for the xAI API.
const DefaultBaseURL = "https://api.x.ai"

// Default model names.
const (
	DefaultChatModel      = "grok-2-latest"
	DefaultEmbeddingModel = "v1"
	DefaultImageModel     = "grok-2-image"
)

// NewAPI creates the REST client shared by the Grok models. An empty baseURL
// selects DefaultBaseURL. A trailing /v1 is stripped, since endpoint paths
// already carry it.
func NewAPI(baseURL, apiKey string, client *http.Client) *modeladapter.ModelAdapter {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimSuffix(strings.TrimRight(baseURL, "/"), "/v1")

	a := openai.NewAPI(baseURL, apiKey, client)
	a.Name = "grok"

	return a
}

// NewChatModel creates a Grok chat model.
func NewChatModel(api *modeladapter.ModelAdapter, defaults chat.Options, retrier *modeladapter.Retrier) *openai.ChatModel {
	return openai.NewChatModel(api, chat.Options{Model: DefaultChatModel}.Merge(defaults), retrier)
}

// NewEmbeddingModel creates a Grok embedding model.
func NewEmbeddingModel(api *modeladapter.ModelAdapter, defaults embedding.Options, retrier *modeladapter.Retrier) *openai.EmbeddingModel {
	return openai.NewEmbeddingModel(api, embedding.Options{Model: DefaultEmbeddingModel}.Merge(defaults), retrier)
}

// NewImageModel creates a Grok image model. Grok rejects size, quality and
// style, so those are left to the caller.
func NewImageModel(api *modeladapter.ModelAdapter, defaults image.Options, retrier *modeladapter.Retrier) *openai.ImageModel {
	return openai.NewImageModel(api, image.Options{Model: DefaultImageModel}.Merge(defaults), retrier)
}
