package openai

import (
	"context"

	"github.com/germanamz/modelkit/pkg/image"
	"github.com/germanamz/modelkit/pkg/modeladapter"
)

// DefaultImageModel is the image model used when none is configured.
const DefaultImageModel = "dall-e-3"

var _ image.Model = (*ImageModel)(nil)

// ImageModel sends prompts to the Images endpoint.
type ImageModel struct {
	api      *modeladapter.ModelAdapter
	defaults image.Options
	retrier  *modeladapter.Retrier
}

// NewImageModel creates an ImageModel. defaults is layered over the built-in
// defaults; a nil retrier uses modeladapter.DefaultRetryPolicy.
func NewImageModel(api *modeladapter.ModelAdapter, defaults image.Options, retrier *modeladapter.Retrier) *ImageModel {
	return &ImageModel{api: api, defaults: defaults, retrier: retrier}
}

// DefaultOptions returns the options applied before per-call overrides.
func (m *ImageModel) DefaultOptions() image.Options {
	return image.Options{Model: DefaultImageModel}.Merge(m.defaults)
}

// Call generates images for the prompt. Weighted messages are flattened into
// a single prompt text.
func (m *ImageModel) Call(ctx context.Context, p image.Prompt) (*image.Response, error) {
	if err := p.Validate(); err != nil {
		return nil, m.api.Errorf("image", err)
	}

	opts := m.DefaultOptions()
	if p.Options != nil {
		opts = opts.Merge(*p.Options)
	}

	req := newImageRequest(p.Text(), opts)

	resp, err := modeladapter.Execute(ctx, m.retrier, func(ctx context.Context) (*image.Response, error) {
		var body imageResponse

		reply, err := m.api.PostJSON(ctx, ImagesPath, req, &body)
		if err != nil {
			return nil, err
		}

		if reply.Empty() {
			m.api.WarnEmpty("image", reply)
			return &image.Response{Metadata: m.api.Metadata(reply)}, nil
		}

		out := body.toResponse()
		out.Metadata = m.api.Metadata(reply)
		out.Metadata.Model = opts.Model

		return out, nil
	})
	if err != nil {
		return nil, m.api.Errorf("image", err)
	}

	return resp, nil
}

type imageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              *int   `json:"n,omitempty"`
	Size           string `json:"size,omitempty"`
	ResponseFormat string `json:"response_format,omitempty"`
	Quality        string `json:"quality,omitempty"`
	Style          string `json:"style,omitempty"`
	User           string `json:"user,omitempty"`
}

// newImageRequest builds the Images endpoint payload from merged options.
func newImageRequest(prompt string, o image.Options) imageRequest {
	return imageRequest{
		Model:          o.Model,
		Prompt:         prompt,
		N:              o.N,
		Size:           o.Size(),
		ResponseFormat: o.ResponseFormat,
		Quality:        o.Quality,
		Style:          o.Style,
		User:           o.User,
	}
}

type imageResponse struct {
	Created int64       `json:"created"`
	Data    []imageData `json:"data"`
}

type imageData struct {
	URL           string `json:"url,omitempty"`
	B64JSON       string `json:"b64_json,omitempty"`
	RevisedPrompt string `json:"revised_prompt,omitempty"`
}

func (r imageResponse) toResponse() *image.Response {
	out := &image.Response{
		Generations: make([]image.Generation, len(r.Data)),
		Created:     r.Created,
	}

	for i, d := range r.Data {
		out.Generations[i] = image.Generation{
			Image:         image.Image{URL: d.URL, B64JSON: d.B64JSON},
			RevisedPrompt: d.RevisedPrompt,
		}
	}

	return out
}
