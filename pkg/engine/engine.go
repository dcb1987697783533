package engine

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/germanamz/modelkit/pkg/modeladapter"
)

// Engine is the composition root that builds every configured provider and
// exposes its models. Retry activity of all providers is published on one
// EventBus and counted in one RetryStats.
type Engine struct {
	cfg       Config
	log       *zap.Logger
	events    *EventBus
	stats     *modeladapter.RetryStats
	providers map[string]*Provider
	order     []string
}

// Option configures an Engine.
type Option func(*options)

type options struct {
	log    *zap.Logger
	client *http.Client
	now    func() time.Time
}

// WithLogger sets the logger used by every provider. The default discards
// logs.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithHTTPClient sets the HTTP client shared by every provider.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

// New validates cfg and creates every provider it declares.
func New(cfg Config, opts ...Option) (*Engine, error) {
	o := options{log: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:       cfg,
		log:       o.log,
		events:    NewEventBus(),
		stats:     &modeladapter.RetryStats{},
		providers: make(map[string]*Provider, len(cfg.Providers)),
	}

	for _, pc := range cfg.Providers {
		listener := &busListener{bus: e.events, provider: pc.Name, now: o.now}

		p, err := buildProvider(pc, Deps{Client: o.client, Log: o.log}, e.stats, listener)
		if err != nil {
			return nil, fmt.Errorf("engine: provider %q: %w", pc.Name, err)
		}

		e.providers[pc.Name] = p
		e.order = append(e.order, pc.Name)

		e.log.Debug("provider ready",
			zap.String("provider", pc.Name),
			zap.String("kind", pc.Kind),
			zap.Strings("capabilities", p.Capabilities()),
		)
	}

	return e, nil
}

// Provider returns the provider with the given name. An empty name selects
// the configured default, or the first provider.
func (e *Engine) Provider(name string) (*Provider, error) {
	if name == "" {
		name = e.cfg.Default
	}
	if name == "" {
		name = e.order[0]
	}

	p, ok := e.providers[name]
	if !ok {
		return nil, fmt.Errorf("engine: provider %q not found", name)
	}

	return p, nil
}

// Providers returns all providers in configuration order.
func (e *Engine) Providers() []*Provider {
	out := make([]*Provider, len(e.order))
	for i, name := range e.order {
		out[i] = e.providers[name]
	}
	return out
}

// Events returns the engine's event bus.
func (e *Engine) Events() *EventBus { return e.events }

// RetryStats returns the retry counters shared by all providers.
func (e *Engine) RetryStats() *modeladapter.RetryStats { return e.stats }
