package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/germanamz/modelkit/pkg/chat"
	"github.com/germanamz/modelkit/pkg/model"
	"github.com/germanamz/modelkit/pkg/modeladapter"
)

func TestKinds_Builtin(t *testing.T) {
	kinds := Kinds()

	assert.Contains(t, kinds, "openai")
	assert.Contains(t, kinds, "anthropic")
	assert.Contains(t, kinds, "grok")
}

func TestBuildProvider_OpenAI(t *testing.T) {
	p, err := buildProvider(ProviderConfig{
		Name:    "work",
		Kind:    "openai",
		APIKey:  "sk",
		Timeout: "45s",
		Headers: map[string]string{"OpenAI-Organization": "org-9"},
	}, Deps{})
	require.NoError(t, err)

	assert.Equal(t, "work", p.Name)
	assert.Equal(t, "work", p.API.Name)
	assert.Equal(t, 45*time.Second, p.API.Timeout)
	assert.Equal(t, "org-9", p.API.Headers["OpenAI-Organization"])
	assert.Equal(t, []string{"chat", "embedding", "image", "speech", "transcription"}, p.Capabilities())
}

func TestBuildProvider_AnthropicKeepsVersionHeader(t *testing.T) {
	p, err := buildProvider(ProviderConfig{
		Name:    "claude",
		Kind:    "anthropic",
		Headers: map[string]string{"anthropic-beta": "x"},
	}, Deps{})
	require.NoError(t, err)

	assert.Equal(t, "2023-06-01", p.API.Headers["anthropic-version"])
	assert.Equal(t, "x", p.API.Headers["anthropic-beta"])
	assert.Equal(t, []string{"chat", "embedding", "image"}, p.Capabilities())
	assert.Nil(t, p.Speech)
	assert.Nil(t, p.Transcription)
}

func TestBuildProvider_Grok(t *testing.T) {
	p, err := buildProvider(ProviderConfig{Name: "x", Kind: "grok"}, Deps{})
	require.NoError(t, err)

	assert.Equal(t, "https://api.x.ai", p.API.BaseURL)
	assert.Equal(t, []string{"chat", "embedding", "image"}, p.Capabilities())
}

func TestBuildProvider_UnknownKind(t *testing.T) {
	_, err := buildProvider(ProviderConfig{Name: "x", Kind: "nope"}, Deps{})
	assert.EqualError(t, err, `unknown provider kind "nope"`)
}

func TestBuildProvider_RetryPolicyApplied(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	stats := &modeladapter.RetryStats{}
	p, err := buildProvider(ProviderConfig{
		Name:    "flaky",
		Kind:    "openai",
		BaseURL: srv.URL,
		Retry:   RetryConfig{MaxAttempts: 2, InitialDelay: "1ms", MaxDelay: "1ms"},
	}, Deps{Client: srv.Client()}, stats)
	require.NoError(t, err)

	_, err = p.Chat.Call(context.Background(), chat.NewPrompt(chat.UserMessage("hi")))

	var apiErr *modeladapter.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 2, stats.Errors())
}

func TestRegisterProvider_Custom(t *testing.T) {
	RegisterProvider("echo", func(cfg ProviderConfig, _ Deps) (*Provider, error) {
		return &Provider{
			Name: cfg.Name,
			Kind: cfg.Kind,
			Chat: model.Func[chat.Prompt, *chat.Response](func(_ context.Context, p chat.Prompt) (*chat.Response, error) {
				last := p.Messages[len(p.Messages)-1]
				return &chat.Response{Generations: []chat.Generation{{Message: chat.AssistantMessage(last.Content)}}}, nil
			}),
		}, nil
	})

	cfg := Config{Providers: []ProviderConfig{{Name: "e", Kind: "echo"}}}
	require.NoError(t, cfg.Validate())

	e, err := New(cfg)
	require.NoError(t, err)

	p, err := e.Provider("e")
	require.NoError(t, err)

	resp, err := p.Chat.Call(context.Background(), chat.NewPrompt(chat.UserMessage("ping")))
	require.NoError(t, err)
	assert.Equal(t, "ping", resp.Text())
}
