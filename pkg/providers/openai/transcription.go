package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/germanamz/modelkit/pkg/modeladapter"
	"github.com/germanamz/modelkit/pkg/transcription"
)

// Transcription defaults.
const (
	DefaultTranscriptionModel  = "whisper-1"
	DefaultTranscriptionFormat = transcription.FormatJSON
)

var _ transcription.Model = (*TranscriptionModel)(nil)

// TranscriptionModel uploads audio to the Transcriptions endpoint.
type TranscriptionModel struct {
	api      *modeladapter.ModelAdapter
	defaults transcription.Options
	retrier  *modeladapter.Retrier
}

// NewTranscriptionModel creates a TranscriptionModel. defaults is layered over
// the built-in defaults; a nil retrier uses modeladapter.DefaultRetryPolicy.
func NewTranscriptionModel(api *modeladapter.ModelAdapter, defaults transcription.Options, retrier *modeladapter.Retrier) *TranscriptionModel {
	return &TranscriptionModel{api: api, defaults: defaults, retrier: retrier}
}

// DefaultOptions returns the options applied before per-call overrides.
func (m *TranscriptionModel) DefaultOptions() transcription.Options {
	return transcription.Options{
		Model:          DefaultTranscriptionModel,
		ResponseFormat: DefaultTranscriptionFormat,
	}.Merge(m.defaults)
}

// Call transcribes the prompt audio. JSON formats are decoded; text, srt and
// vtt bodies are returned verbatim as the transcript text.
func (m *TranscriptionModel) Call(ctx context.Context, p transcription.Prompt) (*transcription.Response, error) {
	if err := p.Validate(); err != nil {
		return nil, m.api.Errorf("transcription", err)
	}

	opts := m.DefaultOptions()
	if p.Options != nil {
		opts = opts.Merge(*p.Options)
	}

	filename := p.Filename
	if filename == "" {
		filename = "audio"
	}

	form := modeladapter.Form{
		Fields: []modeladapter.FormField{
			{Name: "model", Value: opts.Model},
			{Name: "language", Value: opts.Language},
			{Name: "prompt", Value: opts.Prompt},
			{Name: "response_format", Value: opts.ResponseFormat},
		},
		FileField: "file",
		Filename:  filename,
		File:      p.Audio,
	}
	if opts.Temperature != nil {
		form.Fields = append(form.Fields, modeladapter.FormField{
			Name:  "temperature",
			Value: strconv.FormatFloat(*opts.Temperature, 'f', -1, 64),
		})
	}

	resp, err := modeladapter.Execute(ctx, m.retrier, func(ctx context.Context) (*transcription.Response, error) {
		reply, err := m.api.PostMultipart(ctx, TranscriptionPath, form)
		if err != nil {
			return nil, err
		}

		md := m.api.Metadata(reply)
		md.Model = opts.Model

		if reply.Empty() {
			m.api.WarnEmpty("transcription", reply)
			return &transcription.Response{Metadata: md}, nil
		}

		if !transcription.IsJSONFormat(opts.ResponseFormat) {
			return &transcription.Response{
				Results:  []transcription.Result{{Text: string(reply.Body)}},
				Metadata: md,
			}, nil
		}

		var body transcriptionResponse
		if err := json.Unmarshal(reply.Body, &body); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}

		return &transcription.Response{
			Results: []transcription.Result{{
				Text:     body.Text,
				Language: body.Language,
				Duration: body.Duration,
			}},
			Metadata: md,
		}, nil
	})
	if err != nil {
		return nil, m.api.Errorf("transcription", err)
	}

	return resp, nil
}

type transcriptionResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}
