package engine

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/germanamz/modelkit/pkg/modeladapter"
)

// Config is the top-level engine configuration.
type Config struct {
	Providers []ProviderConfig `yaml:"providers" validate:"required,min=1,dive"`
	Default   string           `yaml:"default"` // Provider used when none is named; the first one otherwise.
}

// ProviderConfig describes one provider instance.
type ProviderConfig struct {
	Name    string            `yaml:"name" validate:"required"`
	Kind    string            `yaml:"kind" validate:"required"`
	BaseURL string            `yaml:"base_url" validate:"omitempty,url"`
	APIKey  string            `yaml:"api_key"` //nolint:gosec // configuration field, not a hardcoded secret
	Timeout string            `yaml:"timeout" validate:"omitempty,duration"`
	Headers map[string]string `yaml:"headers"`
	Models  ModelsConfig      `yaml:"models"`
	Retry   RetryConfig       `yaml:"retry"`
}

// ModelsConfig names the default model per capability. Empty entries keep the
// provider's built-in default.
type ModelsConfig struct {
	Chat          string `yaml:"chat"`
	Embedding     string `yaml:"embedding"`
	Image         string `yaml:"image"`
	Speech        string `yaml:"speech"`
	Transcription string `yaml:"transcription"`
}

// RetryConfig overrides the default retry policy. Zero values keep the
// defaults.
type RetryConfig struct {
	MaxAttempts  int     `yaml:"max_attempts" validate:"gte=0"`
	InitialDelay string  `yaml:"initial_delay" validate:"omitempty,duration"`
	Multiplier   float64 `yaml:"multiplier" validate:"omitempty,gte=1"`
	MaxDelay     string  `yaml:"max_delay" validate:"omitempty,duration"`
	Jitter       bool    `yaml:"jitter"`
}

// Policy converts the configuration to a retry policy. Durations must already
// be valid; Validate checks them.
func (r RetryConfig) Policy() (modeladapter.RetryPolicy, error) {
	p := modeladapter.RetryPolicy{
		MaxAttempts: r.MaxAttempts,
		Multiplier:  r.Multiplier,
		Jitter:      r.Jitter,
	}

	var err error
	if p.InitialDelay, err = parseOptionalDuration(r.InitialDelay); err != nil {
		return p, fmt.Errorf("initial_delay: %w", err)
	}
	if p.MaxDelay, err = parseOptionalDuration(r.MaxDelay); err != nil {
		return p, fmt.Errorf("max_delay: %w", err)
	}

	return p, nil
}

func parseOptionalDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// LoadConfig reads a YAML file and returns a Config.
// Environment variables referenced as ${VAR} or $VAR in the YAML are expanded
// before parsing, so API keys can live in the environment (or a .env file)
// rather than in the config.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-provided configuration, not user input
	if err != nil {
		return Config{}, fmt.Errorf("engine: load config: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig expands environment variables in data and decodes it as YAML.
func ParseConfig(data []byte) (Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("engine: parse config: %w", err)
	}

	return cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		d, err := time.ParseDuration(fl.Field().String())
		return err == nil && d >= 0
	})

	return v
}

// Validate checks that the configuration is internally consistent: required
// fields are set, durations parse, provider names are unique, every kind has
// a registered factory, and Default names a configured provider.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fmt.Errorf("engine: config: %s", describe(verrs[0]))
		}
		return fmt.Errorf("engine: config: %w", err)
	}

	names := make(map[string]struct{}, len(c.Providers))
	for _, p := range c.Providers {
		if _, dup := names[p.Name]; dup {
			return fmt.Errorf("engine: config: duplicate provider name %q", p.Name)
		}
		names[p.Name] = struct{}{}

		if _, ok := getFactory(p.Kind); !ok {
			return fmt.Errorf("engine: config: provider %q: unknown kind %q", p.Name, p.Kind)
		}
	}

	if _, ok := names[c.Default]; c.Default != "" && !ok {
		return fmt.Errorf("engine: config: default provider %q not found", c.Default)
	}

	return nil
}

// describe renders a validation failure with the YAML path of the field, as in
// "providers[0].kind is required".
func describe(fe validator.FieldError) string {
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}

	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must have at least %s entries", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL, got %q", field, fe.Value())
	case "duration":
		return fmt.Sprintf("%s must be a duration such as 30s or 2m, got %q", field, fe.Value())
	default:
		return fmt.Sprintf("%s failed %q validation", field, fe.Tag())
	}
}
