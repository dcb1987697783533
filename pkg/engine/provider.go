package engine

import (
	"fmt"
	"maps"
	"net/http"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/germanamz/modelkit/pkg/chat"
	"github.com/germanamz/modelkit/pkg/embedding"
	"github.com/germanamz/modelkit/pkg/image"
	"github.com/germanamz/modelkit/pkg/modeladapter"
	"github.com/germanamz/modelkit/pkg/providers/anthropic"
	"github.com/germanamz/modelkit/pkg/providers/grok"
	"github.com/germanamz/modelkit/pkg/providers/openai"
	"github.com/germanamz/modelkit/pkg/speech"
	"github.com/germanamz/modelkit/pkg/transcription"
)

// Provider bundles the models of one configured provider. Capabilities the
// provider does not offer are nil.
type Provider struct {
	Name string
	Kind string
	API  *modeladapter.ModelAdapter

	Chat          chat.Model
	Embedding     embedding.Model
	Image         image.Model
	Speech        speech.Model
	Transcription transcription.Model
}

// Capabilities lists the names of the capabilities the provider offers.
func (p *Provider) Capabilities() []string {
	var caps []string
	if p.Chat != nil {
		caps = append(caps, "chat")
	}
	if p.Embedding != nil {
		caps = append(caps, "embedding")
	}
	if p.Image != nil {
		caps = append(caps, "image")
	}
	if p.Speech != nil {
		caps = append(caps, "speech")
	}
	if p.Transcription != nil {
		caps = append(caps, "transcription")
	}
	return caps
}

// Deps carries what the engine shares with every provider factory.
type Deps struct {
	Client  *http.Client // Optional; nil uses a client with the configured timeout.
	Log     *zap.Logger
	Retrier *modeladapter.Retrier
}

// ProviderFactory creates a Provider from a ProviderConfig.
type ProviderFactory func(cfg ProviderConfig, deps Deps) (*Provider, error)

var (
	factoryMu   sync.RWMutex
	factories   = map[string]ProviderFactory{}
	defaultsReg sync.Once
)

func ensureDefaults() {
	defaultsReg.Do(func() {
		factories["anthropic"] = newAnthropic
		factories["openai"] = newOpenAI
		factories["grok"] = newGrok
	})
}

// RegisterProvider registers a custom provider factory under the given kind.
// It can be called before New to extend the engine with additional providers.
func RegisterProvider(kind string, factory ProviderFactory) {
	ensureDefaults()

	factoryMu.Lock()
	defer factoryMu.Unlock()

	factories[kind] = factory
}

// Kinds returns the registered provider kinds, sorted.
func Kinds() []string {
	ensureDefaults()

	factoryMu.RLock()
	defer factoryMu.RUnlock()

	return slices.Sorted(maps.Keys(factories))
}

// getFactory returns the factory for the given kind.
func getFactory(kind string) (ProviderFactory, bool) {
	ensureDefaults()

	factoryMu.RLock()
	defer factoryMu.RUnlock()

	f, ok := factories[kind]
	return f, ok
}

// configure applies the settings every kind shares to a freshly built REST
// client.
func configure(api *modeladapter.ModelAdapter, cfg ProviderConfig, deps Deps) error {
	api.Name = cfg.Name
	api.Log = deps.Log

	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout %q: %w", cfg.Timeout, err)
		}
		api.Timeout = d
	}

	if len(cfg.Headers) > 0 {
		headers := make(map[string]string, len(api.Headers)+len(cfg.Headers))
		maps.Copy(headers, api.Headers)
		maps.Copy(headers, cfg.Headers)
		api.Headers = headers
	}

	return nil
}

func newOpenAI(cfg ProviderConfig, deps Deps) (*Provider, error) {
	api := openai.NewAPI(cfg.BaseURL, cfg.APIKey, deps.Client)
	if err := configure(api, cfg, deps); err != nil {
		return nil, err
	}

	m, r := cfg.Models, deps.Retrier

	return &Provider{
		Name:          cfg.Name,
		Kind:          cfg.Kind,
		API:           api,
		Chat:          openai.NewChatModel(api, chat.Options{Model: m.Chat}, r),
		Embedding:     openai.NewEmbeddingModel(api, embedding.Options{Model: m.Embedding}, r),
		Image:         openai.NewImageModel(api, image.Options{Model: m.Image}, r),
		Speech:        openai.NewSpeechModel(api, speech.Options{Model: m.Speech}, r),
		Transcription: openai.NewTranscriptionModel(api, transcription.Options{Model: m.Transcription}, r),
	}, nil
}

func newAnthropic(cfg ProviderConfig, deps Deps) (*Provider, error) {
	api := anthropic.NewAPI(cfg.BaseURL, cfg.APIKey, deps.Client)
	if err := configure(api, cfg, deps); err != nil {
		return nil, err
	}

	m, r := cfg.Models, deps.Retrier

	return &Provider{
		Name:      cfg.Name,
		Kind:      cfg.Kind,
		API:       api,
		Chat:      anthropic.NewChatModel(api, chat.Options{Model: m.Chat}, r),
		Embedding: anthropic.NewEmbeddingModel(api, embedding.Options{Model: m.Embedding}, r),
		Image:     anthropic.NewImageModel(api, image.Options{Model: m.Image}, r),
	}, nil
}

func newGrok(cfg ProviderConfig, deps Deps) (*Provider, error) {
	api := grok.NewAPI(cfg.BaseURL, cfg.APIKey, deps.Client)
	if err := configure(api, cfg, deps); err != nil {
		return nil, err
	}

	m, r := cfg.Models, deps.Retrier

	return &Provider{
		Name:      cfg.Name,
		Kind:      cfg.Kind,
		API:       api,
		Chat:      grok.NewChatModel(api, chat.Options{Model: m.Chat}, r),
		Embedding: grok.NewEmbeddingModel(api, embedding.Options{Model: m.Embedding}, r),
		Image:     grok.NewImageModel(api, image.Options{Model: m.Image}, r),
	}, nil
}

// buildProvider creates a Provider from a ProviderConfig using the registered
// factory for its Kind, with a retrier built from the config's retry section.
func buildProvider(cfg ProviderConfig, deps Deps, listeners ...modeladapter.RetryListener) (*Provider, error) {
	factory, ok := getFactory(cfg.Kind)
	if !ok {
		return nil, fmt.Errorf("unknown provider kind %q", cfg.Kind)
	}

	policy, err := cfg.Retry.Policy()
	if err != nil {
		return nil, fmt.Errorf("retry: %w", err)
	}

	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	deps.Log = log
	deps.Retrier = modeladapter.NewRetrier(policy, log.With(zap.String("provider", cfg.Name)), listeners...)

	return factory(cfg, deps)
}
