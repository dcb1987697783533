package modeladapter

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Default retry policy values.
const (
	DefaultMaxAttempts  = 10
	DefaultInitialDelay = 2 * time.Second
	DefaultMultiplier   = 5
	DefaultMaxDelay     = 3 * time.Minute
)

// RetryPolicy bounds how a call is retried. Zero fields take the defaults.
type RetryPolicy struct {
	MaxAttempts  int           // Total attempts including the first (default 10).
	InitialDelay time.Duration // Delay before the first retry (default 2s).
	Multiplier   float64       // Growth factor between retries (default 5).
	MaxDelay     time.Duration // Upper bound on any single delay (default 3m).
	Jitter       bool          // Apply ±25% random jitter to each delay.
}

// DefaultRetryPolicy returns the policy applied when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  DefaultMaxAttempts,
		InitialDelay: DefaultInitialDelay,
		Multiplier:   DefaultMultiplier,
		MaxDelay:     DefaultMaxDelay,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = DefaultInitialDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = DefaultMultiplier
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	return p
}

// Delay returns the un-jittered backoff before the given retry (1-based):
// InitialDelay * Multiplier^(retry-1), capped at MaxDelay.
func (p RetryPolicy) Delay(retry int) time.Duration {
	p = p.withDefaults()
	if retry < 1 {
		retry = 1
	}

	d := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(retry-1))
	if d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// RetryListener observes the retry loop of each call. retryCount is the number
// of transient failures seen so far in that call.
type RetryListener interface {
	OnError(ctx context.Context, retryCount int, err error)
	OnSuccess(ctx context.Context, retryCount int)
}

// RetryStats is a RetryListener that records the most recent counts. It is
// safe for concurrent use.
type RetryStats struct {
	errors        atomic.Int64
	lastErrorRC   atomic.Int64
	lastSuccessRC atomic.Int64
	successes     atomic.Int64
}

var _ RetryListener = (*RetryStats)(nil)

// OnError implements RetryListener.
func (s *RetryStats) OnError(_ context.Context, retryCount int, _ error) {
	s.errors.Add(1)
	s.lastErrorRC.Store(int64(retryCount))
}

// OnSuccess implements RetryListener.
func (s *RetryStats) OnSuccess(_ context.Context, retryCount int) {
	s.successes.Add(1)
	s.lastSuccessRC.Store(int64(retryCount))
}

// Errors returns the total number of transient failures observed.
func (s *RetryStats) Errors() int { return int(s.errors.Load()) }

// Successes returns the number of calls that eventually succeeded.
func (s *RetryStats) Successes() int { return int(s.successes.Load()) }

// LastErrorRetryCount returns the retry count reported with the latest failure.
func (s *RetryStats) LastErrorRetryCount() int { return int(s.lastErrorRC.Load()) }

// LastSuccessRetryCount returns the number of retries the latest successful
// call needed.
func (s *RetryStats) LastSuccessRetryCount() int { return int(s.lastSuccessRC.Load()) }

// Retrier runs calls under a RetryPolicy. Only errors accepted by its retry
// classifier (IsTransient by default) are retried; anything else is returned
// on first occurrence. A Retrier is configured once and then shared.
type Retrier struct {
	policy    RetryPolicy
	log       *zap.Logger
	listeners []RetryListener
	retryOn   func(error) bool

	// sleepFunc is used for testing; defaults to a context-aware sleep.
	sleepFunc func(ctx context.Context, d time.Duration) error
	// randFunc returns a random float64 in [0,1); used for jitter. Defaults to rand.Float64.
	randFunc func() float64
}

// NewRetrier creates a Retrier. A nil logger disables retry logging.
func NewRetrier(policy RetryPolicy, log *zap.Logger, listeners ...RetryListener) *Retrier {
	if log == nil {
		log = zap.NewNop()
	}

	return &Retrier{
		policy:    policy.withDefaults(),
		log:       log,
		listeners: listeners,
		retryOn:   IsTransient,
		sleepFunc: contextSleep,
		randFunc:  rand.Float64,
	}
}

// Policy returns the effective policy.
func (r *Retrier) Policy() RetryPolicy { return r.policy }

// SetRetryOn overrides which errors are considered transient.
func (r *Retrier) SetRetryOn(fn func(error) bool) { r.retryOn = fn }

// SetSleepFunc overrides the sleep function (for testing).
func (r *Retrier) SetSleepFunc(fn func(ctx context.Context, d time.Duration) error) {
	r.sleepFunc = fn
}

// SetRandFunc overrides the random number generator (for testing).
func (r *Retrier) SetRandFunc(fn func() float64) { r.randFunc = fn }

// contextSleep sleeps for d or until ctx is cancelled.
func contextSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// jitter applies ±25% random jitter to a duration.
func (r *Retrier) jitter(d time.Duration) time.Duration {
	factor := 0.75 + r.randFunc()*0.5 //nolint:mnd // jitter range: ±25%
	return time.Duration(float64(d) * factor)
}

// backoff returns the delay before the given retry. A server-provided
// Retry-After larger than the computed delay wins; MaxDelay caps both.
func (r *Retrier) backoff(retry int, err error) time.Duration {
	d := r.policy.Delay(retry)

	var rle *RateLimitError
	if errors.As(err, &rle) && rle.RetryAfter > d {
		d = min(rle.RetryAfter, r.policy.MaxDelay)
	}

	if r.policy.Jitter {
		d = r.jitter(d)
	}

	return d
}

// Execute calls fn until it succeeds, fails with a non-transient error, or
// the policy's attempts are exhausted, sleeping between attempts. The last
// error is returned unchanged. A nil Retrier uses DefaultRetryPolicy.
func Execute[T any](ctx context.Context, r *Retrier, fn func(ctx context.Context) (T, error)) (T, error) {
	if r == nil {
		r = NewRetrier(DefaultRetryPolicy(), nil)
	}

	var zero T
	retries := 0

	for {
		v, err := fn(ctx)
		if err == nil {
			for _, l := range r.listeners {
				l.OnSuccess(ctx, retries)
			}
			return v, nil
		}

		if ctx.Err() != nil || !r.retryOn(err) {
			return zero, err
		}

		retries++
		for _, l := range r.listeners {
			l.OnError(ctx, retries, err)
		}

		if retries >= r.policy.MaxAttempts {
			r.log.Warn("retries exhausted",
				zap.Int("retry_count", retries),
				zap.Int("max_attempts", r.policy.MaxAttempts),
				zap.Error(err),
			)
			return zero, err
		}

		delay := r.backoff(retries, err)
		r.log.Warn("retry error",
			zap.Int("retry_count", retries),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		if err := r.sleepFunc(ctx, delay); err != nil {
			return zero, err
		}
	}
}
