package engine

import (
	"context"
	"sync"
	"time"

	"github.com/germanamz/modelkit/pkg/modeladapter"
)

// EventKind identifies the type of engine event.
type EventKind string

const (
	EventRetry    EventKind = "retry"     // A call failed with a transient error.
	EventCallDone EventKind = "call_done" // A call succeeded, possibly after retries.
)

// Event is an immutable notification of model call activity.
type Event struct {
	Kind       EventKind
	Provider   string
	RetryCount int
	Err        error
	Timestamp  time.Time
}

// Subscription receives events from an EventBus.
type Subscription struct {
	C  <-chan Event
	ch chan Event
}

// EventBus fans out events to all active subscribers. It is safe for
// concurrent use.
type EventBus struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

// NewEventBus creates an EventBus ready for use.
func NewEventBus() *EventBus {
	return &EventBus{
		subs: make(map[*Subscription]struct{}),
	}
}

// Subscribe creates a new subscription with the given channel buffer size.
// The caller should read from sub.C and eventually call Unsubscribe.
func (b *EventBus) Subscribe(bufSize int) *Subscription {
	ch := make(chan Event, bufSize)
	sub := &Subscription{C: ch, ch: ch}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	return sub
}

// Unsubscribe removes the subscription and closes its channel.
func (b *EventBus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.ch)
	}
}

// Publish sends an event to all subscribers. If a subscriber's buffer is full
// the event is dropped for that subscriber so a slow consumer never stalls a
// model call.
func (b *EventBus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		select {
		case sub.ch <- e:
		default:
		}
	}
}

// busListener publishes the retry loop of one provider onto an EventBus.
type busListener struct {
	bus      *EventBus
	provider string
	now      func() time.Time
}

var _ modeladapter.RetryListener = (*busListener)(nil)

func (l *busListener) OnError(_ context.Context, retryCount int, err error) {
	l.bus.Publish(Event{
		Kind:       EventRetry,
		Provider:   l.provider,
		RetryCount: retryCount,
		Err:        err,
		Timestamp:  l.now(),
	})
}

func (l *busListener) OnSuccess(_ context.Context, retryCount int) {
	l.bus.Publish(Event{
		Kind:       EventCallDone,
		Provider:   l.provider,
		RetryCount: retryCount,
		Timestamp:  l.now(),
	})
}
