package modeladapter_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"testing"
	"time"

	"github.com/germanamz/modelkit/pkg/modeladapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// newTestRetrier returns a retrier that records sleeps instead of sleeping.
func newTestRetrier(policy modeladapter.RetryPolicy, log *zap.Logger, listeners ...modeladapter.RetryListener) (*modeladapter.Retrier, *[]time.Duration) {
	r := modeladapter.NewRetrier(policy, log, listeners...)

	var sleeps []time.Duration
	r.SetSleepFunc(func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	})

	return r, &sleeps
}

func transientErr() error {
	return &modeladapter.APIError{StatusCode: http.StatusServiceUnavailable, Body: "busy"}
}

func TestRetryPolicy_Delay(t *testing.T) {
	p := modeladapter.DefaultRetryPolicy()

	assert.Equal(t, 2*time.Second, p.Delay(1))
	assert.Equal(t, 10*time.Second, p.Delay(2))
	assert.Equal(t, 50*time.Second, p.Delay(3))
	assert.Equal(t, 3*time.Minute, p.Delay(4))
	assert.Equal(t, 3*time.Minute, p.Delay(9))
}

func TestRetryPolicy_ZeroUsesDefaults(t *testing.T) {
	r := modeladapter.NewRetrier(modeladapter.RetryPolicy{}, nil)

	assert.Equal(t, modeladapter.DefaultRetryPolicy(), r.Policy())
}

func TestExecute_TransientThenSuccess(t *testing.T) {
	for _, k := range []int{0, 1, 2, 5} {
		t.Run(fmt.Sprintf("failures=%d", k), func(t *testing.T) {
			stats := &modeladapter.RetryStats{}
			r, sleeps := newTestRetrier(modeladapter.DefaultRetryPolicy(), nil, stats)

			calls := 0
			got, err := modeladapter.Execute(context.Background(), r, func(context.Context) (string, error) {
				calls++
				if calls <= k {
					return "", transientErr()
				}
				return "ok", nil
			})

			require.NoError(t, err)
			assert.Equal(t, "ok", got)
			assert.Equal(t, k+1, calls)
			assert.Len(t, *sleeps, k)
			assert.Equal(t, k, stats.LastSuccessRetryCount())
			assert.Equal(t, k, stats.Errors())
			assert.Equal(t, 1, stats.Successes())
		})
	}
}

func TestExecute_BackoffSequence(t *testing.T) {
	r, sleeps := newTestRetrier(modeladapter.DefaultRetryPolicy(), nil)

	calls := 0
	_, err := modeladapter.Execute(context.Background(), r, func(context.Context) (int, error) {
		calls++
		if calls <= 4 {
			return 0, transientErr()
		}
		return calls, nil
	})

	require.NoError(t, err)
	assert.Equal(t, []time.Duration{2 * time.Second, 10 * time.Second, 50 * time.Second, 3 * time.Minute}, *sleeps)
}

func TestExecute_NonTransientNotRetried(t *testing.T) {
	stats := &modeladapter.RetryStats{}
	r, sleeps := newTestRetrier(modeladapter.DefaultRetryPolicy(), nil, stats)

	badRequest := &modeladapter.APIError{StatusCode: http.StatusBadRequest, Message: "bad model"}

	calls := 0
	_, err := modeladapter.Execute(context.Background(), r, func(context.Context) (string, error) {
		calls++
		return "", fmt.Errorf("openai: chat: %w", badRequest)
	})

	var apiErr *modeladapter.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *sleeps)
	assert.Zero(t, stats.Errors())
	assert.Zero(t, stats.Successes())
}

func TestExecute_Exhausted(t *testing.T) {
	stats := &modeladapter.RetryStats{}
	r, sleeps := newTestRetrier(modeladapter.RetryPolicy{MaxAttempts: 3}, nil, stats)

	calls := 0
	_, err := modeladapter.Execute(context.Background(), r, func(context.Context) (string, error) {
		calls++
		return "", &modeladapter.APIError{StatusCode: 500 + calls}
	})

	var apiErr *modeladapter.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 503, apiErr.StatusCode, "last error is returned")
	assert.Equal(t, 3, calls)
	assert.Len(t, *sleeps, 2)
	assert.Equal(t, 3, stats.LastErrorRetryCount())
}

func TestExecute_RetryAfterWins(t *testing.T) {
	r, sleeps := newTestRetrier(modeladapter.DefaultRetryPolicy(), nil)

	calls := 0
	_, err := modeladapter.Execute(context.Background(), r, func(context.Context) (string, error) {
		calls++
		switch calls {
		case 1:
			return "", &modeladapter.RateLimitError{RetryAfter: 7 * time.Second}
		case 2:
			return "", &modeladapter.RateLimitError{RetryAfter: time.Hour}
		}
		return "done", nil
	})

	require.NoError(t, err)
	assert.Equal(t, []time.Duration{7 * time.Second, 3 * time.Minute}, *sleeps)
}

func TestExecute_Jitter(t *testing.T) {
	r, sleeps := newTestRetrier(modeladapter.RetryPolicy{Jitter: true}, nil)
	r.SetRandFunc(func() float64 { return 0 })

	calls := 0
	_, err := modeladapter.Execute(context.Background(), r, func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", transientErr()
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, []time.Duration{1500 * time.Millisecond}, *sleeps)
}

func TestExecute_CancelledDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	r := modeladapter.NewRetrier(modeladapter.DefaultRetryPolicy(), nil)
	r.SetSleepFunc(func(ctx context.Context, _ time.Duration) error {
		cancel()
		<-ctx.Done()
		return ctx.Err()
	})

	calls := 0
	_, err := modeladapter.Execute(ctx, r, func(context.Context) (string, error) {
		calls++
		return "", transientErr()
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestExecute_CancelledContextNotRetried(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, sleeps := newTestRetrier(modeladapter.DefaultRetryPolicy(), nil)

	calls := 0
	_, err := modeladapter.Execute(ctx, r, func(ctx context.Context) (string, error) {
		calls++
		return "", transientErr()
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *sleeps)
}

func TestExecute_SetRetryOn(t *testing.T) {
	errFlaky := errors.New("flaky")

	r, sleeps := newTestRetrier(modeladapter.DefaultRetryPolicy(), nil)
	r.SetRetryOn(func(err error) bool { return errors.Is(err, errFlaky) })

	calls := 0
	_, err := modeladapter.Execute(context.Background(), r, func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errFlaky
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Len(t, *sleeps, 1)
}

func TestExecute_LogsRetries(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	r, _ := newTestRetrier(modeladapter.RetryPolicy{MaxAttempts: 2}, zap.New(core))

	_, err := modeladapter.Execute(context.Background(), r, func(context.Context) (string, error) {
		return "", transientErr()
	})
	require.Error(t, err)

	retried := logs.FilterMessage("retry error").All()
	require.Len(t, retried, 1)
	assert.Equal(t, int64(1), retried[0].ContextMap()["retry_count"])

	assert.Equal(t, 1, logs.FilterMessage("retries exhausted").Len())
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"500", &modeladapter.APIError{StatusCode: 500}, true},
		{"503 wrapped", fmt.Errorf("x: %w", &modeladapter.APIError{StatusCode: 503}), true},
		{"408", &modeladapter.APIError{StatusCode: 408}, true},
		{"400", &modeladapter.APIError{StatusCode: 400}, false},
		{"401", &modeladapter.APIError{StatusCode: 401}, false},
		{"429", &modeladapter.RateLimitError{}, true},
		{"canceled", context.Canceled, false},
		{"plain", errors.New("boom"), false},
		{"connection refused", &url.Error{Op: "Post", URL: "http://x", Err: &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}}, true},
		{"connection reset", fmt.Errorf("read response: %w", syscall.ECONNRESET), true},
		{"server closed connection", &url.Error{Op: "Post", URL: "http://x", Err: io.EOF}, true},
		{"truncated body", fmt.Errorf("read response: %w", io.ErrUnexpectedEOF), true},
		{"bad url", &url.Error{Op: "parse", URL: "http://bad host", Err: errors.New(`invalid character " " in host name`)}, false},
		{"unsupported scheme", &url.Error{Op: "Post", URL: "api.openai.com/v1", Err: errors.New(`unsupported protocol scheme ""`)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, modeladapter.IsTransient(tt.err))
		})
	}
}

func TestExecute_NilRetrier(t *testing.T) {
	got, err := modeladapter.Execute(context.Background(), nil, func(context.Context) (int, error) {
		return 7, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 7, got)
}
