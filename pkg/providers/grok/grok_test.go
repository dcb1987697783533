package grok_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/germanamz/modelkit/pkg/chat"
	"github.com/germanamz/modelkit/pkg/embedding"
	"github.com/germanamz/modelkit/pkg/image"
	"github.com/germanamz/modelkit/pkg/modeladapter"
	"github.com/germanamz/modelkit/pkg/providers/grok"
	"github.com/germanamz/modelkit/pkg/providers/openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *modeladapter.ModelAdapter {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return grok.NewAPI(srv.URL+"/v1", "xai-key", srv.Client())
}

func noSleepRetrier() *modeladapter.Retrier {
	r := modeladapter.NewRetrier(modeladapter.DefaultRetryPolicy(), nil)
	r.SetSleepFunc(func(context.Context, time.Duration) error { return nil })
	return r
}

func decode(t *testing.T, r *http.Request) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	return body
}

func TestNewAPI(t *testing.T) {
	a := grok.NewAPI("", "xai-key", nil)

	assert.Equal(t, grok.DefaultBaseURL, a.BaseURL)
	assert.Equal(t, "grok", a.Name)
	assert.Equal(t, "xai-key", a.Auth.Key)
	assert.NotNil(t, a.HeaderParser)

	assert.Equal(t, "https://api.x.ai", grok.NewAPI("https://api.x.ai/v1/", "k", nil).BaseURL)
}

func TestChat(t *testing.T) {
	api := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, openai.ChatPath, r.URL.Path)
		assert.Equal(t, "Bearer xai-key", r.Header.Get("Authorization"))

		body := decode(t, r)
		assert.Equal(t, grok.DefaultChatModel, body["model"])
		assert.InDelta(t, 0.5, body["temperature"], 1e-9)

		w.Header().Set("x-ratelimit-remaining-tokens", "9000")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"g-1","model":"grok-2","choices":[{"message":{"role":"assistant","content":"Hi from Grok"},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":4}}`))
	})

	temp := 0.5
	m := grok.NewChatModel(api, chat.Options{Temperature: &temp}, noSleepRetrier())

	resp, err := m.Call(context.Background(), chat.NewPrompt(chat.UserMessage("hello")))
	require.NoError(t, err)

	assert.Equal(t, "Hi from Grok", resp.Text())
	assert.Equal(t, int64(9000), resp.Metadata.RateLimit.TokensRemaining)
	assert.Equal(t, 7, resp.Metadata.Usage.TotalTokens)
	assert.Equal(t, grok.DefaultChatModel, m.DefaultOptions().Model)
}

func TestChat_ErrorPrefix(t *testing.T) {
	api := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`no access`))
	})

	m := grok.NewChatModel(api, chat.Options{}, noSleepRetrier())

	_, err := m.Call(context.Background(), chat.NewPrompt(chat.UserMessage("hello")))
	assert.EqualError(t, err, "grok: chat: unexpected status 403: no access")
}

func TestChat_ConfiguredModelWins(t *testing.T) {
	m := grok.NewChatModel(grok.NewAPI("", "k", nil), chat.Options{Model: "grok-3"}, nil)
	assert.Equal(t, "grok-3", m.DefaultOptions().Model)
}

func TestEmbeddingAndImage(t *testing.T) {
	api := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		body := decode(t, r)
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case openai.EmbeddingsPath:
			assert.Equal(t, grok.DefaultEmbeddingModel, body["model"])
			_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[1,2]}]}`))
		case openai.ImagesPath:
			assert.Equal(t, grok.DefaultImageModel, body["model"])
			_, _ = w.Write([]byte(`{"data":[{"url":"https://x.ai/img.png"}]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	e, err := grok.NewEmbeddingModel(api, embedding.Options{}, noSleepRetrier()).
		Call(context.Background(), embedding.NewRequest("x"))
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, e.Result())

	img, err := grok.NewImageModel(api, image.Options{}, noSleepRetrier()).
		Call(context.Background(), image.NewPrompt("a cat"))
	require.NoError(t, err)
	assert.Equal(t, "https://x.ai/img.png", img.Result().Image.URL)
}
