// Package modeladapter is the shared plumbing behind every provider adapter.
//
// It contains:
//   - [ModelAdapter]: REST client with auth, custom headers, JSON, binary and
//     multipart POST helpers, and rate limit header extraction
//   - [Retrier] and [Execute]: bounded exponential-backoff retry applied at
//     every call site, retrying only [IsTransient] errors
//   - [APIError] and [RateLimitError]: the upstream error taxonomy
//   - [ParseOpenAIRateLimitHeaders] and [ParseAnthropicRateLimitHeaders]
//   - [github.com/germanamz/modelkit/pkg/modeladapter/usage]: thread-safe token usage tracker
//
// This package contains no provider-specific request shapes; concrete adapters
// live under pkg/providers and import modeladapter.
package modeladapter
