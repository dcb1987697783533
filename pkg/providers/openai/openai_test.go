package openai_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/germanamz/modelkit/pkg/chat"
	"github.com/germanamz/modelkit/pkg/model"
	"github.com/germanamz/modelkit/pkg/modeladapter"
	"github.com/germanamz/modelkit/pkg/providers/openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *modeladapter.ModelAdapter {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return openai.NewAPI(srv.URL, "test-key", srv.Client())
}

// noSleepRetrier returns a default-policy retrier that does not wait between
// attempts.
func noSleepRetrier(listeners ...modeladapter.RetryListener) *modeladapter.Retrier {
	r := modeladapter.NewRetrier(modeladapter.DefaultRetryPolicy(), nil, listeners...)
	r.SetSleepFunc(func(context.Context, time.Duration) error { return nil })
	return r
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("failed to encode response: %v", err)
	}
}

func readBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}

	var req map[string]any
	if err := json.Unmarshal(body, &req); err != nil {
		t.Fatalf("failed to unmarshal body: %v", err)
	}

	return req
}

func chatReply(text string) map[string]any {
	return map[string]any{
		"id":    "chatcmpl-1",
		"model": "gpt-4o-mini-2024-07-18",
		"choices": []map[string]any{
			{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": text},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]any{
			"prompt_tokens":     10,
			"completion_tokens": 5,
			"total_tokens":      15,
		},
	}
}

func TestNewAPI_Defaults(t *testing.T) {
	api := openai.NewAPI("", "k", nil)

	assert.Equal(t, openai.DefaultBaseURL, api.BaseURL)
	assert.Equal(t, "openai", api.Name)
	assert.NotNil(t, api.HeaderParser)

	api = openai.NewAPI("http://localhost:8080/", "k", nil)
	assert.Equal(t, "http://localhost:8080", api.BaseURL)
}

func TestChat_SimpleText(t *testing.T) {
	api := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, openai.ChatPath, r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get(modeladapter.RequestIDHeader))

		req := readBody(t, r)
		assert.Equal(t, openai.DefaultChatModel, req["model"])

		msgs, ok := req["messages"].([]any)
		require.True(t, ok)
		require.Len(t, msgs, 2)

		first, _ := msgs[0].(map[string]any)
		assert.Equal(t, "system", first["role"])
		assert.Equal(t, "You are helpful.", first["content"])

		w.Header().Set("x-ratelimit-limit-requests", "4000")
		w.Header().Set("x-ratelimit-remaining-requests", "999")
		w.Header().Set("x-ratelimit-reset-requests", "2d16h15m29s")
		writeJSON(t, w, chatReply("Hello there!"))
	})

	m := openai.NewChatModel(api, chat.Options{}, noSleepRetrier())

	resp, err := m.Call(context.Background(), chat.NewPrompt(
		chat.SystemMessage("You are helpful."),
		chat.UserMessage("Hi"),
	))
	require.NoError(t, err)

	assert.Equal(t, "Hello there!", resp.Text())
	assert.Equal(t, chat.Assistant, resp.Result().Message.Role)
	assert.Equal(t, "stop", resp.Result().FinishReason)

	md := resp.Metadata
	assert.Equal(t, "chatcmpl-1", md.ID)
	assert.Equal(t, "gpt-4o-mini-2024-07-18", md.Model)
	assert.NotEmpty(t, md.RequestID)
	assert.Equal(t, model.Usage{PromptTokens: 10, GenerationTokens: 5, TotalTokens: 15}, md.Usage)
	assert.Equal(t, int64(4000), md.RateLimit.RequestsLimit)
	assert.Equal(t, int64(999), md.RateLimit.RequestsRemaining)
	assert.Equal(t, "PT64H15M29S", model.FormatISODuration(md.RateLimit.RequestsReset))

	last, ok := api.Usage.Last()
	require.True(t, ok)
	assert.Equal(t, 10, last.PromptTokens)
	assert.Equal(t, 5, last.GenerationTokens)
	assert.Equal(t, "gpt-4o-mini-2024-07-18", last.Model)
}

func TestChat_OptionsMerge(t *testing.T) {
	api := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		req := readBody(t, r)

		assert.Equal(t, "gpt-4o", req["model"])
		assert.InDelta(t, 0.2, req["temperature"], 1e-9)
		assert.InDelta(t, 50, req["max_tokens"], 1e-9)
		assert.Equal(t, []any{"END"}, req["stop"])
		assert.NotContains(t, req, "top_p")
		assert.NotContains(t, req, "user")

		writeJSON(t, w, chatReply("ok"))
	})

	m := openai.NewChatModel(api, chat.Options{
		Temperature: model.Ptr(0.2),
		MaxTokens:   model.Ptr(4096),
	}, noSleepRetrier())

	override := chat.Options{
		Model:     "gpt-4o",
		MaxTokens: model.Ptr(50),
		Stop:      []string{"END"},
	}

	_, err := m.Call(context.Background(), chat.NewPrompt(chat.UserMessage("hi")).WithOptions(override))
	require.NoError(t, err)

	assert.Equal(t, 50, *override.MaxTokens)
	assert.Nil(t, override.Temperature, "per-call options are not mutated")
	assert.Equal(t, openai.DefaultChatModel, openai.NewChatModel(api, chat.Options{}, nil).DefaultOptions().Model)
	assert.Equal(t, 4096, *m.DefaultOptions().MaxTokens)
}

func TestChat_InvalidPrompt(t *testing.T) {
	var calls atomic.Int32
	api := newTestServer(t, func(http.ResponseWriter, *http.Request) { calls.Add(1) })

	m := openai.NewChatModel(api, chat.Options{}, noSleepRetrier())

	_, err := m.Call(context.Background(), chat.NewPrompt())
	require.ErrorIs(t, err, model.ErrInvalidRequest)
	assert.Contains(t, err.Error(), "openai: chat")
	assert.Zero(t, calls.Load())
}

func TestChat_EmptyBody(t *testing.T) {
	api := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("x-ratelimit-remaining-tokens", "100")
		w.WriteHeader(http.StatusOK)
	})

	core, logs := observer.New(zapcore.WarnLevel)
	api.Log = zap.New(core)

	m := openai.NewChatModel(api, chat.Options{}, noSleepRetrier())

	resp, err := m.Call(context.Background(), chat.NewPrompt(chat.UserMessage("hi")))
	require.NoError(t, err)

	assert.Empty(t, resp.Generations)
	assert.Empty(t, resp.Text())
	assert.Equal(t, int64(100), resp.Metadata.RateLimit.TokensRemaining)
	assert.Equal(t, 1, logs.FilterMessage("empty response body").Len())
	assert.Zero(t, api.Usage.Count())
}

func TestChat_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	api := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"bad model"}}`))
	})

	stats := &modeladapter.RetryStats{}
	m := openai.NewChatModel(api, chat.Options{}, noSleepRetrier(stats))

	_, err := m.Call(context.Background(), chat.NewPrompt(chat.UserMessage("hi")))

	var apiErr *modeladapter.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "invalid_request_error", apiErr.Type)
	assert.EqualError(t, err, "openai: chat: unexpected status 400: bad model")
	assert.Equal(t, int32(1), calls.Load())
	assert.Zero(t, stats.Errors())
}

func TestChat_TransientRetried(t *testing.T) {
	var calls atomic.Int32
	api := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusServiceUnavailable)
		case 2:
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			writeJSON(t, w, chatReply("finally"))
		}
	})

	stats := &modeladapter.RetryStats{}
	m := openai.NewChatModel(api, chat.Options{}, noSleepRetrier(stats))

	resp, err := m.Call(context.Background(), chat.NewPrompt(chat.UserMessage("hi")))
	require.NoError(t, err)

	assert.Equal(t, "finally", resp.Text())
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 2, stats.LastSuccessRetryCount())
}

func TestChat_RetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	api := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	r := modeladapter.NewRetrier(modeladapter.RetryPolicy{MaxAttempts: 3}, nil)
	r.SetSleepFunc(func(context.Context, time.Duration) error { return nil })

	m := openai.NewChatModel(api, chat.Options{}, r)

	_, err := m.Call(context.Background(), chat.NewPrompt(chat.UserMessage("hi")))

	var apiErr *modeladapter.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}
