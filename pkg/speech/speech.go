// Package speech defines the portable request and response types for
// text-to-speech models.
package speech

import (
	"fmt"

	"github.com/germanamz/modelkit/pkg/model"
)

// Model is implemented by every speech adapter.
type Model = model.Model[Prompt, *Response]

// Prompt is the text to synthesize plus optional per-call options.
type Prompt struct {
	Text    string
	Options *Options
}

// NewPrompt creates a Prompt for the given text.
func NewPrompt(text string) Prompt {
	return Prompt{Text: text}
}

// WithOptions returns a copy of p carrying o as its per-call options.
func (p Prompt) WithOptions(o Options) Prompt {
	p.Options = &o
	return p
}

// Input returns the text to synthesize once o has been merged: an Input set
// on the options replaces the prompt text.
func (p Prompt) Input(o Options) string {
	return model.Merge(p.Text, o.Input)
}

// Options configures a speech call.
type Options struct {
	Model          string
	Input          string
	Voice          string
	ResponseFormat string // mp3, opus, aac, flac, wav or pcm.
	Speed          *float64
}

// Merge layers override on top of o and returns the result.
func (o Options) Merge(override Options) Options {
	return Options{
		Model:          model.Merge(o.Model, override.Model),
		Input:          model.Merge(o.Input, override.Input),
		Voice:          model.Merge(o.Voice, override.Voice),
		ResponseFormat: model.Merge(o.ResponseFormat, override.ResponseFormat),
		Speed:          model.MergePtr(o.Speed, override.Speed),
	}
}

// ValidateInput checks that there is text to synthesize.
func ValidateInput(input string) error {
	if input == "" {
		return fmt.Errorf("speech: %w: input text is required", model.ErrInvalidRequest)
	}
	return nil
}

// Generation is a synthesized audio clip.
type Generation struct {
	Audio []byte
}

// Response holds the synthesized audio for a call.
type Response struct {
	Generations []Generation
	Metadata    model.Metadata
}

// Result returns the first generation, or the zero Generation when the
// response is empty.
func (r *Response) Result() Generation {
	if r == nil || len(r.Generations) == 0 {
		return Generation{}
	}
	return r.Generations[0]
}
