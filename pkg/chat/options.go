package chat

import "github.com/germanamz/modelkit/pkg/model"

// Options configures a chat call. Empty strings, nil pointers and nil slices
// mean "unset" and fall through to the layer below when merged.
type Options struct {
	Model            string
	Temperature      *float64
	TopP             *float64
	TopK             *int // Honored by Anthropic only.
	MaxTokens        *int
	Stop             []string
	PresencePenalty  *float64 // Honored by OpenAI-compatible APIs only.
	FrequencyPenalty *float64 // Honored by OpenAI-compatible APIs only.
	N                *int
	Seed             *int
	User             string
}

// Merge layers override on top of o and returns the result. Neither argument
// is modified.
func (o Options) Merge(override Options) Options {
	return Options{
		Model:            model.Merge(o.Model, override.Model),
		Temperature:      model.MergePtr(o.Temperature, override.Temperature),
		TopP:             model.MergePtr(o.TopP, override.TopP),
		TopK:             model.MergePtr(o.TopK, override.TopK),
		MaxTokens:        model.MergePtr(o.MaxTokens, override.MaxTokens),
		Stop:             model.MergeSlice(o.Stop, override.Stop),
		PresencePenalty:  model.MergePtr(o.PresencePenalty, override.PresencePenalty),
		FrequencyPenalty: model.MergePtr(o.FrequencyPenalty, override.FrequencyPenalty),
		N:                model.MergePtr(o.N, override.N),
		Seed:             model.MergePtr(o.Seed, override.Seed),
		User:             model.Merge(o.User, override.User),
	}
}
