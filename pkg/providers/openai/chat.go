package openai

import (
	"context"

	"github.com/germanamz/modelkit/pkg/chat"
	"github.com/germanamz/modelkit/pkg/modeladapter"
)

// DefaultChatModel is the chat model used when none is configured.
const DefaultChatModel = "gpt-4o-mini"

var _ chat.Model = (*ChatModel)(nil)

// ChatModel sends prompts to the Chat Completions endpoint.
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
	return chat.Options{Model: DefaultChatModel}.Merge(m.defaults)
}

// Call sends the prompt and returns the generated choices.
func (m *ChatModel) Call(ctx context.Context, p chat.Prompt) (*chat.Response, error) {
	if err := p.Validate(); err != nil {
		return nil, m.api.Errorf("chat", err)
	}

	opts := m.DefaultOptions()
	if p.Options != nil {
		opts = opts.Merge(*p.Options)
	}

	req := newChatRequest(p.Messages, opts)

	resp, err := modeladapter.Execute(ctx, m.retrier, func(ctx context.Context) (*chat.Response, error) {
		var body chatResponse

		reply, err := m.api.PostJSON(ctx, ChatPath, req, &body)
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

func (m *ChatModel) toResponse(reply *modeladapter.Reply, body chatResponse) *chat.Response {
	md := m.api.Metadata(reply)
	md.ID = body.ID
	md.Model = body.Model
	md.Usage = body.Usage.toModel()

	track(m.api, body.Model, md.Usage)

	resp := &chat.Response{
		Generations: make([]chat.Generation, 0, len(body.Choices)),
		Metadata:    md,
	}

	for _, c := range body.Choices {
		role := chat.Role(c.Message.Role)
		if role == "" {
			role = chat.Assistant
		}

		resp.Generations = append(resp.Generations, chat.Generation{
			Message:      chat.Message{Role: role, Content: c.Message.Content},
			FinishReason: c.FinishReason,
		})
	}

	return resp
}

// --- request types ---

type chatRequest struct {
	Model            string        `json:"model"`
	Messages         []chatMessage `json:"messages"`
	Temperature      *float64      `json:"temperature,omitempty"`
	TopP             *float64      `json:"top_p,omitempty"`
	MaxTokens        *int          `json:"max_tokens,omitempty"`
	Stop             []string      `json:"stop,omitempty"`
	PresencePenalty  *float64      `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64      `json:"frequency_penalty,omitempty"`
	N                *int          `json:"n,omitempty"`
	Seed             *int          `json:"seed,omitempty"`
	User             string        `json:"user,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func newChatRequest(msgs []chat.Message, o chat.Options) chatRequest {
	req := chatRequest{
		Model:            o.Model,
		Messages:         make([]chatMessage, len(msgs)),
		Temperature:      o.Temperature,
		TopP:             o.TopP,
		MaxTokens:        o.MaxTokens,
		Stop:             o.Stop,
		PresencePenalty:  o.PresencePenalty,
		FrequencyPenalty: o.FrequencyPenalty,
		N:                o.N,
		Seed:             o.Seed,
		User:             o.User,
	}

	for i, m := range msgs {
		req.Messages[i] = chatMessage{Role: m.Role.String(), Content: m.Content}
	}

	return req
}

// --- response types ---

type chatResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   apiUsage     `json:"usage"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}
