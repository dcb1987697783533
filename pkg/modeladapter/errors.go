package modeladapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"syscall"
	"time"
)

// APIError is returned when the API responds with a non-2xx status other than
// 429. Message and Type are extracted from the usual {"error": {...}} body when
// present.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Transient reports whether the failure is on the server side (5xx) or a
// request timeout (408), both of which may succeed when retried.
func (e *APIError) Transient() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusRequestTimeout
}

// RateLimitError is returned when the API responds with HTTP 429 (Too Many Requests).
// It carries an optional RetryAfter duration parsed from the Retry-After header.
type RateLimitError struct {
	RetryAfter time.Duration
	Body       string
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited (retry after %s): %s", e.RetryAfter, e.Body)
	}
	return fmt.Sprintf("rate limited: %s", e.Body)
}

// Transient always reports true; rate limits clear with time.
func (e *RateLimitError) Transient() bool { return true }

// IsTransient reports whether err belongs to the retryable class: a 5xx/408
// APIError, a RateLimitError, or a network failure (connection errors,
// timeouts, a connection dropped mid-response). Cancellation is never
// transient, and neither is a *url.Error raised for a malformed URL or an
// unsupported scheme.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var t interface{ Transient() bool }
	if errors.As(err, &t) {
		return t.Transient()
	}

	// *url.Error implements net.Error itself, so classify what it wraps.
	var ue *url.Error
	if errors.As(err, &ue) {
		if errors.Is(ue.Err, io.EOF) {
			return true
		}
		err = ue.Err
	}

	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}

	return errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE)
}

// ParseRetryAfter parses the Retry-After header value as either seconds (integer)
// or an HTTP-date (RFC 7231). Returns zero if unparseable or if the date is in the past.
func ParseRetryAfter(val string) time.Duration {
	if val == "" {
		return 0
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(val); err == nil {
		d := time.Until(t)
		if d > 0 {
			return d
		}
		return 0
	}
	return 0
}

type apiErrorBody struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// errorFromResponse maps a non-2xx response to a RateLimitError or APIError.
func errorFromResponse(status int, h http.Header, body []byte) error {
	if status == http.StatusTooManyRequests {
		return &RateLimitError{
			RetryAfter: ParseRetryAfter(h.Get("Retry-After")),
			Body:       string(body),
		}
	}

	e := &APIError{StatusCode: status, Body: string(body)}

	var parsed apiErrorBody
	if json.Unmarshal(body, &parsed) == nil {
		e.Type = parsed.Error.Type
		e.Message = parsed.Error.Message
	}

	return e
}
