package model

import (
	"fmt"
	"strings"
	"time"
)

// Usage reports token consumption for a single call.
type Usage struct {
	PromptTokens     int
	GenerationTokens int
	TotalTokens      int
}

// IsZero reports whether no usage was reported.
func (u Usage) IsZero() bool {
	return u == Usage{}
}

// RateLimit is a snapshot of the provider's quota as reported in response
// headers. The zero value means no rate limit headers were present.
type RateLimit struct {
	RequestsLimit     int64
	RequestsRemaining int64
	RequestsReset     time.Duration
	TokensLimit       int64
	TokensRemaining   int64
	TokensReset       time.Duration
}

// IsZero reports whether the snapshot carries no information.
func (r RateLimit) IsZero() bool {
	return r == RateLimit{}
}

func (r RateLimit) String() string {
	return fmt.Sprintf("{requestsLimit: %d, requestsRemaining: %d, requestsReset: %s, tokensLimit: %d, tokensRemaining: %d, tokensReset: %s}",
		r.RequestsLimit, r.RequestsRemaining, FormatISODuration(r.RequestsReset),
		r.TokensLimit, r.TokensRemaining, FormatISODuration(r.TokensReset))
}

// Metadata describes a response independent of its results.
type Metadata struct {
	ID        string // Provider-assigned response id, when returned.
	Model     string // Model that produced the response.
	RequestID string // Client request id sent with the final attempt.
	Usage     Usage
	RateLimit RateLimit
}

// FormatISODuration renders d as an ISO-8601 duration using hours as the
// largest unit, e.g. 64h15m29s becomes "PT64H15M29S".
func FormatISODuration(d time.Duration) string {
	if d == 0 {
		return "PT0S"
	}

	var b strings.Builder
	if d < 0 {
		b.WriteByte('-')
		d = -d
	}
	b.WriteString("PT")

	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute

	if h > 0 {
		fmt.Fprintf(&b, "%dH", h)
	}
	if m > 0 {
		fmt.Fprintf(&b, "%dM", m)
	}
	if d > 0 {
		secs := d / time.Second
		frac := d - secs*time.Second
		if frac == 0 {
			fmt.Fprintf(&b, "%dS", secs)
		} else {
			s := strings.TrimRight(fmt.Sprintf("%d.%09d", secs, frac), "0")
			fmt.Fprintf(&b, "%sS", s)
		}
	}

	return b.String()
}
