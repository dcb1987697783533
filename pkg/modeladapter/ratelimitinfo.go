package modeladapter

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/germanamz/modelkit/pkg/model"
)

// RateLimitHeaderParser extracts rate limit info from HTTP response headers.
// It receives the current time so callers can control the clock in tests. It
// returns nil when none of the headers it knows are present.
type RateLimitHeaderParser func(h http.Header, now time.Time) *model.RateLimit

type rateLimitHeaders struct {
	requestsLimit, requestsRemaining, requestsReset string
	tokensLimit, tokensRemaining, tokensReset       string
}

var (
	openAIHeaders = rateLimitHeaders{
		requestsLimit:     "x-ratelimit-limit-requests",
		requestsRemaining: "x-ratelimit-remaining-requests",
		requestsReset:     "x-ratelimit-reset-requests",
		tokensLimit:       "x-ratelimit-limit-tokens",
		tokensRemaining:   "x-ratelimit-remaining-tokens",
		tokensReset:       "x-ratelimit-reset-tokens",
	}
	anthropicHeaders = rateLimitHeaders{
		requestsLimit:     "anthropic-ratelimit-requests-limit",
		requestsRemaining: "anthropic-ratelimit-requests-remaining",
		requestsReset:     "anthropic-ratelimit-requests-reset",
		tokensLimit:       "anthropic-ratelimit-tokens-limit",
		tokensRemaining:   "anthropic-ratelimit-tokens-remaining",
		tokensReset:       "anthropic-ratelimit-tokens-reset",
	}
)

// ParseOpenAIRateLimitHeaders parses OpenAI-compatible rate limit headers.
// Also used by Grok since it follows the same convention.
// Headers: x-ratelimit-{limit,remaining,reset}-{requests,tokens}.
func ParseOpenAIRateLimitHeaders(h http.Header, now time.Time) *model.RateLimit {
	return parseRateLimit(h, openAIHeaders, now)
}

// ParseAnthropicRateLimitHeaders parses Anthropic-specific rate limit headers.
// Headers: anthropic-ratelimit-{requests,tokens}-{limit,remaining,reset}.
func ParseAnthropicRateLimitHeaders(h http.Header, now time.Time) *model.RateLimit {
	return parseRateLimit(h, anthropicHeaders, now)
}

func parseRateLimit(h http.Header, names rateLimitHeaders, now time.Time) *model.RateLimit {
	found := false
	get := func(name string) string {
		v := strings.TrimSpace(h.Get(name))
		if v != "" {
			found = true
		}
		return v
	}

	reqLimit := get(names.requestsLimit)
	reqRemaining := get(names.requestsRemaining)
	reqReset := get(names.requestsReset)
	tokLimit := get(names.tokensLimit)
	tokRemaining := get(names.tokensRemaining)
	tokReset := get(names.tokensReset)

	if !found {
		return nil
	}

	return &model.RateLimit{
		RequestsLimit:     parseCount(reqLimit),
		RequestsRemaining: parseCount(reqRemaining),
		RequestsReset:     parseReset(reqReset, now),
		TokensLimit:       parseCount(tokLimit),
		TokensRemaining:   parseCount(tokRemaining),
		TokensReset:       parseReset(tokReset, now),
	}
}

func parseCount(val string) int64 {
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// parseReset accepts an RFC3339 timestamp (converted to the time left until it,
// never negative) or a duration understood by ParseDuration.
func parseReset(val string, now time.Time) time.Duration {
	if val == "" {
		return 0
	}
	if t, err := time.Parse(time.RFC3339, val); err == nil {
		return max(t.Sub(now), 0)
	}
	if d, err := ParseDuration(val); err == nil {
		return d
	}
	return 0
}

// ParseDuration extends time.ParseDuration with a leading day unit, as used by
// rate limit reset headers ("2d16h15m29s", "27h55s451ms"). A bare number is
// read as seconds.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("modeladapter: empty duration")
	}

	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}

	i := strings.IndexByte(s, 'd')
	if i < 0 {
		return time.ParseDuration(s)
	}

	days, err := strconv.ParseFloat(s[:i], 64)
	if err != nil || days < 0 {
		return 0, fmt.Errorf("modeladapter: invalid duration %q", s)
	}

	d := time.Duration(days * float64(24*time.Hour))
	if rest := s[i+1:]; rest != "" {
		r, err := time.ParseDuration(rest)
		if err != nil {
			return 0, fmt.Errorf("modeladapter: invalid duration %q: %w", s, err)
		}
		d += r
	}

	return d, nil
}
