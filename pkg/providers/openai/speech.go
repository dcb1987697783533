package openai

import (
	"context"

	"github.com/germanamz/modelkit/pkg/modeladapter"
	"github.com/germanamz/modelkit/pkg/speech"
)

// Speech defaults.
const (
	DefaultSpeechModel  = "tts-1"
	DefaultSpeechVoice  = "alloy"
	DefaultSpeechFormat = "mp3"
)

var _ speech.Model = (*SpeechModel)(nil)

// SpeechModel synthesizes audio through the Speech endpoint.
type SpeechModel struct {
	api      *modeladapter.ModelAdapter
	defaults speech.Options
	retrier  *modeladapter.Retrier
}

// NewSpeechModel creates a SpeechModel. defaults is layered over the built-in
// defaults; a nil retrier uses modeladapter.DefaultRetryPolicy.
func NewSpeechModel(api *modeladapter.ModelAdapter, defaults speech.Options, retrier *modeladapter.Retrier) *SpeechModel {
	return &SpeechModel{api: api, defaults: defaults, retrier: retrier}
}

// DefaultOptions returns the options applied before per-call overrides.
func (m *SpeechModel) DefaultOptions() speech.Options {
	return speech.Options{
		Model:          DefaultSpeechModel,
		Voice:          DefaultSpeechVoice,
		ResponseFormat: DefaultSpeechFormat,
	}.Merge(m.defaults)
}

// Call synthesizes the prompt text and returns the raw audio.
func (m *SpeechModel) Call(ctx context.Context, p speech.Prompt) (*speech.Response, error) {
	opts := m.DefaultOptions()
	if p.Options != nil {
		opts = opts.Merge(*p.Options)
	}

	input := p.Input(opts)
	if err := speech.ValidateInput(input); err != nil {
		return nil, m.api.Errorf("speech", err)
	}

	req := speechRequest{
		Model:          opts.Model,
		Input:          input,
		Voice:          opts.Voice,
		ResponseFormat: opts.ResponseFormat,
		Speed:          opts.Speed,
	}

	resp, err := modeladapter.Execute(ctx, m.retrier, func(ctx context.Context) (*speech.Response, error) {
		reply, err := m.api.PostBinary(ctx, SpeechPath, req, audioMIME(opts.ResponseFormat))
		if err != nil {
			return nil, err
		}

		md := m.api.Metadata(reply)
		md.Model = opts.Model

		if reply.Empty() {
			m.api.WarnEmpty("speech", reply)
			return &speech.Response{Metadata: md}, nil
		}

		return &speech.Response{
			Generations: []speech.Generation{{Audio: reply.Body}},
			Metadata:    md,
		}, nil
	})
	if err != nil {
		return nil, m.api.Errorf("speech", err)
	}

	return resp, nil
}

type speechRequest struct {
	Model          string   `json:"model"`
	Input          string   `json:"input"`
	Voice          string   `json:"voice"`
	ResponseFormat string   `json:"response_format,omitempty"`
	Speed          *float64 `json:"speed,omitempty"`
}

func audioMIME(format string) string {
	switch format {
	case "opus":
		return "audio/opus"
	case "aac":
		return "audio/aac"
	case "flac":
		return "audio/flac"
	case "wav":
		return "audio/wav"
	case "pcm":
		return "audio/pcm"
	default:
		return "audio/mpeg"
	}
}
