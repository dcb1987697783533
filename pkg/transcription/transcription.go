// Package transcription defines the portable request and response types for
// speech-to-text models.
package transcription

import (
	"fmt"

	"github.com/germanamz/modelkit/pkg/model"
)

// Model is implemented by every transcription adapter.
type Model = model.Model[Prompt, *Response]

// Prompt carries the audio to transcribe. Filename is sent with the upload and
// lets the provider infer the audio format.
type Prompt struct {
	Audio    []byte
	Filename string
	Options  *Options
}

// NewPrompt creates a Prompt for the given audio file contents.
func NewPrompt(filename string, audio []byte) Prompt {
	return Prompt{Audio: audio, Filename: filename}
}

// WithOptions returns a copy of p carrying o as its per-call options.
func (p Prompt) WithOptions(o Options) Prompt {
	p.Options = &o
	return p
}

// Validate checks the prompt preconditions.
func (p Prompt) Validate() error {
	if len(p.Audio) == 0 {
		return fmt.Errorf("transcription: %w: audio is required", model.ErrInvalidRequest)
	}
	return nil
}

// Response formats understood by the adapters.
const (
	FormatJSON        = "json"
	FormatVerboseJSON = "verbose_json"
	FormatText        = "text"
	FormatSRT         = "srt"
	FormatVTT         = "vtt"
)

// Options configures a transcription call.
type Options struct {
	Model          string
	Language       string
	Prompt         string
	ResponseFormat string
	Temperature    *float64
}

// Merge layers override on top of o and returns the result.
func (o Options) Merge(override Options) Options {
	return Options{
		Model:          model.Merge(o.Model, override.Model),
		Language:       model.Merge(o.Language, override.Language),
		Prompt:         model.Merge(o.Prompt, override.Prompt),
		ResponseFormat: model.Merge(o.ResponseFormat, override.ResponseFormat),
		Temperature:    model.MergePtr(o.Temperature, override.Temperature),
	}
}

// IsJSONFormat reports whether format yields a JSON body.
func IsJSONFormat(format string) bool {
	return format == "" || format == FormatJSON || format == FormatVerboseJSON
}

// Result is a transcript.
type Result struct {
	Text     string
	Language string  // Detected language, when reported.
	Duration float64 // Audio duration in seconds, when reported.
}

// Response holds the transcript for a call.
type Response struct {
	Results  []Result
	Metadata model.Metadata
}

// Result returns the first transcript, or the zero Result when the response is
// empty.
func (r *Response) Result() Result {
	if r == nil || len(r.Results) == 0 {
		return Result{}
	}
	return r.Results[0]
}
