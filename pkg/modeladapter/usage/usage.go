// Package usage accumulates token consumption reported by model calls.
package usage

import "sync"

// TokenCount holds the token usage reported for a single call.
type TokenCount struct {
	Model            string
	PromptTokens     int
	GenerationTokens int
}

// Total returns the sum of prompt and generation tokens.
func (tc TokenCount) Total() int {
	return tc.PromptTokens + tc.GenerationTokens
}

// Tracker accumulates usage across calls.
// It is safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	entries []TokenCount
}

// Add records a token count entry.
func (t *Tracker) Add(tc TokenCount) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = append(t.entries, tc)
}

// Last returns the most recent entry.
// The bool is false when the tracker has no entries.
func (t *Tracker) Last() (TokenCount, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.entries) == 0 {
		return TokenCount{}, false
	}

	return t.entries[len(t.entries)-1], true
}

// Total returns the aggregate across all entries. Model is left empty.
func (t *Tracker) Total() TokenCount {
	return t.sum(func(TokenCount) bool { return true })
}

// TotalFor returns the aggregate for entries recorded against model.
func (t *Tracker) TotalFor(model string) TokenCount {
	total := t.sum(func(tc TokenCount) bool { return tc.Model == model })
	total.Model = model
	return total
}

func (t *Tracker) sum(keep func(TokenCount) bool) TokenCount {
	t.mu.Lock()
	defer t.mu.Unlock()

	var total TokenCount
	for _, e := range t.entries {
		if !keep(e) {
			continue
		}
		total.PromptTokens += e.PromptTokens
		total.GenerationTokens += e.GenerationTokens
	}

	return total
}

// Count returns the number of recorded entries.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.entries)
}

// Reset clears all recorded entries.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = nil
}
