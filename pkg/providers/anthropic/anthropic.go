// Package anthropic implements chat models for the Anthropic Messages API.
// Embedding and image models use the OpenAI-shaped endpoints exposed under
// the same base URL and credentials.
package anthropic

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/germanamz/modelkit/pkg/chat"
	"github.com/germanamz/modelkit/pkg/embedding"
	"github.com/germanamz/modelkit/pkg/image"
	"github.com/germanamz/modelkit/pkg/model"
	"github.com/germanamz/modelkit/pkg/modeladapter"
	"github.com/germanamz/modelkit/pkg/modeladapter/usage"
	"github.com/germanamz/modelkit/pkg/providers/openai"
)

// DefaultBaseURL is the base URL for the Anthropic API.
const DefaultBaseURL = "https://api.anthropic.com"

// APIVersion is sent as the anthropic-version header.
const APIVersion = "2023-06-01"

// MessagesPath is the Messages endpoint path.
const MessagesPath = "/v1/messages"

// Chat defaults. The Messages API requires max_tokens.
const (
	DefaultChatModel = "claude-3-5-sonnet-latest"
	DefaultMaxTokens = 1024
)

// NewAPI creates the REST client shared by the Anthropic models. An empty
// baseURL selects DefaultBaseURL.
func NewAPI(baseURL, apiKey string, client *http.Client) *modeladapter.ModelAdapter {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	a := modeladapter.New(strings.TrimRight(baseURL, "/"), modeladapter.Auth{
		Key:    apiKey,
		Header: "x-api-key",
	}, client)
	a.Name = "anthropic"
	a.Headers = map[string]string{
		"anthropic-version": APIVersion,
	}
	a.HeaderParser = modeladapter.ParseAnthropicRateLimitHeaders

	return a
}

// NewEmbeddingModel creates an embedding model that calls the OpenAI-shaped
// embeddings endpoint through api.
func NewEmbeddingModel(api *modeladapter.ModelAdapter, defaults embedding.Options, retrier *modeladapter.Retrier) *openai.EmbeddingModel {
	return openai.NewEmbeddingModel(api, defaults, retrier)
}

// NewImageModel creates an image model that calls the OpenAI-shaped image
// generation endpoint through api.
func NewImageModel(api *modeladapter.ModelAdapter, defaults image.Options, retrier *modeladapter.Retrier) *openai.ImageModel {
	return openai.NewImageModel(api, defaults, retrier)
}

var _ chat.Model = (*ChatModel)(nil)

// ChatModel sends prompts to the Messages endpoint.
type ChatModel struct {
	api      *modeladapter.ModelAdapter
	defaults chat.Options
	retrier  *modeladapter.Retrier
}

// NewChatModel creates a ChatModel. defaults is layered over the built-in
// defaults; a nil retrier uses modeladapter.DefaultRetryPolicy.
func NewChatModel(api *modeladapter.ModelAdapter, defaults chat.Options, retrier *modeladapter.Retrier) *ChatModel {
	return &ChatModel{api: api, defaults: defaults, retrier: retrier}
}

// DefaultOptions returns the options applied before per-call overrides.
func (m *ChatModel) DefaultOptions() chat.Options {
	return chat.Options{
		Model:     DefaultChatModel,
		MaxTokens: model.Ptr(DefaultMaxTokens),
	}.Merge(m.defaults)
}

// Call sends the prompt and returns the assistant's reply. System messages
// are lifted into the top-level system field.
func (m *ChatModel) Call(ctx context.Context, p chat.Prompt) (*chat.Response, error) {
	if err := p.Validate(); err != nil {
		return nil, m.api.Errorf("chat", err)
	}

	opts := m.DefaultOptions()
	if p.Options != nil {
		opts = opts.Merge(*p.Options)
	}

	req := newRequest(p.Messages, opts)
	if len(req.Messages) == 0 {
		return nil, m.api.Errorf("chat", fmt.Errorf("%w: at least one non-system message is required", model.ErrInvalidRequest))
	}

	resp, err := modeladapter.Execute(ctx, m.retrier, func(ctx context.Context) (*chat.Response, error) {
		var body apiResponse

		reply, err := m.api.PostJSON(ctx, MessagesPath, req, &body)
		if err != nil {
			return nil, err
		}

		if reply.Empty() {
			m.api.WarnEmpty("chat", reply)
			return &chat.Response{Metadata: m.api.Metadata(reply)}, nil
		}

		return m.toResponse(reply, body), nil
	})
	if err != nil {
		return nil, m.api.Errorf("chat", err)
	}

	return resp, nil
}

func (m *ChatModel) toResponse(reply *modeladapter.Reply, body apiResponse) *chat.Response {
	md := m.api.Metadata(reply)
	md.ID = body.ID
	md.Model = body.Model
	md.Usage = model.Usage{
		PromptTokens:     body.Usage.InputTokens,
		GenerationTokens: body.Usage.OutputTokens,
		TotalTokens:      body.Usage.InputTokens + body.Usage.OutputTokens,
	}

	if !md.Usage.IsZero() {
		m.api.Usage.Add(usage.TokenCount{
			Model:            body.Model,
			PromptTokens:     body.Usage.InputTokens,
			GenerationTokens: body.Usage.OutputTokens,
		})
	}

	var text strings.Builder
	for _, c := range body.Content {
		if c.Type == "text" {
			text.WriteString(c.Text)
		}
	}

	return &chat.Response{
		Generations: []chat.Generation{{
			Message:      chat.AssistantMessage(text.String()),
			FinishReason: body.StopReason,
		}},
		Metadata: md,
	}
}

// --- request types ---

type apiRequest struct {
	Model         string       `json:"model"`
	MaxTokens     int          `json:"max_tokens"`
	System        string       `json:"system,omitempty"`
	Messages      []apiMessage `json:"messages"`
	Temperature   *float64     `json:"temperature,omitempty"`
	TopP          *float64     `json:"top_p,omitempty"`
	TopK          *int         `json:"top_k,omitempty"`
	StopSequences []string     `json:"stop_sequences,omitempty"`
	Metadata      *apiMetadata `json:"metadata,omitempty"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiMetadata struct {
	UserID string `json:"user_id"`
}

// newRequest builds the Messages payload. Consecutive messages with the same
// role are joined, since the API requires alternating turns.
func newRequest(msgs []chat.Message, o chat.Options) apiRequest {
	req := apiRequest{
		Model:         o.Model,
		MaxTokens:     DefaultMaxTokens,
		Temperature:   o.Temperature,
		TopP:          o.TopP,
		TopK:          o.TopK,
		StopSequences: o.Stop,
	}

	if o.MaxTokens != nil {
		req.MaxTokens = *o.MaxTokens
	}

	if o.User != "" {
		req.Metadata = &apiMetadata{UserID: o.User}
	}

	var system []string

	for _, m := range msgs {
		if m.Role == chat.System {
			system = append(system, m.Content)
			continue
		}

		role := m.Role.String()
		if n := len(req.Messages); n > 0 && req.Messages[n-1].Role == role {
			req.Messages[n-1].Content += "\n\n" + m.Content
			continue
		}

		req.Messages = append(req.Messages, apiMessage{Role: role, Content: m.Content})
	}

	req.System = strings.Join(system, "\n\n")

	return req
}

// --- response types ---

type apiResponse struct {
	ID         string       `json:"id"`
	Model      string       `json:"model"`
	Content    []apiContent `json:"content"`
	StopReason string       `json:"stop_reason"`
	Usage      apiUsage     `json:"usage"`
}

type apiContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type apiUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}
