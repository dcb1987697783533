// Package image defines the portable request and response types for image
// generation models.
package image

import (
	"fmt"
	"strings"

	"github.com/germanamz/modelkit/pkg/model"
)

// Model is implemented by every image adapter.
type Model = model.Model[Prompt, *Response]

// Message is one piece of the image description. Weight is advisory and
// ignored by providers that do not support weighted prompts.
type Message struct {
	Text   string
	Weight *float64
}

// Prompt is the description of the image to generate.
type Prompt struct {
	Messages []Message
	Options  *Options
}

// NewPrompt creates a single-message Prompt.
func NewPrompt(text string) Prompt {
	return Prompt{Messages: []Message{{Text: text}}}
}

// WithOptions returns a copy of p carrying o as its per-call options.
func (p Prompt) WithOptions(o Options) Prompt {
	p.Options = &o
	return p
}

// Text joins the message texts with a space.
func (p Prompt) Text() string {
	parts := make([]string, 0, len(p.Messages))
	for _, m := range p.Messages {
		if m.Text != "" {
			parts = append(parts, m.Text)
		}
	}
	return strings.Join(parts, " ")
}

// Validate checks the prompt preconditions.
func (p Prompt) Validate() error {
	if strings.TrimSpace(p.Text()) == "" {
		return fmt.Errorf("image: %w: prompt text is required", model.ErrInvalidRequest)
	}
	return nil
}

// Options configures an image call.
type Options struct {
	Model          string
	N              *int
	Width          *int
	Height         *int
	ResponseFormat string // "url" or "b64_json".
	Quality        string
	Style          string
	User           string
}

// Merge layers override on top of o and returns the result.
func (o Options) Merge(override Options) Options {
	return Options{
		Model:          model.Merge(o.Model, override.Model),
		N:              model.MergePtr(o.N, override.N),
		Width:          model.MergePtr(o.Width, override.Width),
		Height:         model.MergePtr(o.Height, override.Height),
		ResponseFormat: model.Merge(o.ResponseFormat, override.ResponseFormat),
		Quality:        model.Merge(o.Quality, override.Quality),
		Style:          model.Merge(o.Style, override.Style),
		User:           model.Merge(o.User, override.User),
	}
}

// Size renders Width and Height as "WxH", or "" when either is unset.
func (o Options) Size() string {
	if o.Width == nil || o.Height == nil {
		return ""
	}
	return fmt.Sprintf("%dx%d", *o.Width, *o.Height)
}

// Image is a generated image, referenced by URL or embedded as base64.
type Image struct {
	URL     string
	B64JSON string
}

// Generation is one generated image.
type Generation struct {
	Image         Image
	RevisedPrompt string
}

// Response holds the images returned by a call.
type Response struct {
	Generations []Generation
	Created     int64
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
