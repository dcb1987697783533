package openai

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/germanamz/modelkit/pkg/embedding"
	"github.com/germanamz/modelkit/pkg/modeladapter"
)

// DefaultEmbeddingModel is the embedding model used when none is configured.
const DefaultEmbeddingModel = "text-embedding-ada-002"

var _ embedding.Model = (*EmbeddingModel)(nil)

// EmbeddingModel sends inputs to the Embeddings endpoint.
type EmbeddingModel struct {
	api      *modeladapter.ModelAdapter
	defaults embedding.Options
	retrier  *modeladapter.Retrier
}

// NewEmbeddingModel creates an EmbeddingModel. defaults is layered over the
// built-in defaults; a nil retrier uses modeladapter.DefaultRetryPolicy.
func NewEmbeddingModel(api *modeladapter.ModelAdapter, defaults embedding.Options, retrier *modeladapter.Retrier) *EmbeddingModel {
	return &EmbeddingModel{api: api, defaults: defaults, retrier: retrier}
}

// DefaultOptions returns the options applied before per-call overrides.
func (m *EmbeddingModel) DefaultOptions() embedding.Options {
	return embedding.Options{Model: DefaultEmbeddingModel}.Merge(m.defaults)
}

// Call embeds every input of the request.
func (m *EmbeddingModel) Call(ctx context.Context, r embedding.Request) (*embedding.Response, error) {
	if err := r.Validate(); err != nil {
		return nil, m.api.Errorf("embedding", err)
	}

	opts := m.DefaultOptions()
	if r.Options != nil {
		opts = opts.Merge(*r.Options)
	}

	req := embeddingRequest{
		Model:          opts.Model,
		Input:          r.Inputs,
		EncodingFormat: opts.EncodingFormat,
		Dimensions:     opts.Dimensions,
		User:           opts.User,
	}

	resp, err := modeladapter.Execute(ctx, m.retrier, func(ctx context.Context) (*embedding.Response, error) {
		var body embeddingResponse

		reply, err := m.api.PostJSON(ctx, EmbeddingsPath, req, &body)
		if err != nil {
			return nil, err
		}

		if reply.Empty() {
			m.api.WarnEmpty("embedding", reply)
			return &embedding.Response{Metadata: m.api.Metadata(reply)}, nil
		}

		md := m.api.Metadata(reply)
		md.Model = body.Model
		md.Usage = body.Usage.toModel()
		track(m.api, body.Model, md.Usage)

		out := &embedding.Response{
			Embeddings: make([]embedding.Embedding, len(body.Data)),
			Metadata:   md,
		}
		for i, d := range body.Data {
			out.Embeddings[i] = embedding.Embedding{Index: d.Index, Vector: []float64(d.Embedding)}
		}
		sort.SliceStable(out.Embeddings, func(i, j int) bool {
			return out.Embeddings[i].Index < out.Embeddings[j].Index
		})

		return out, nil
	})
	if err != nil {
		return nil, m.api.Errorf("embedding", err)
	}

	return resp, nil
}

type embeddingRequest struct {
	Model          string   `json:"model"`
	Input          []string `json:"input"`
	EncodingFormat string   `json:"encoding_format,omitempty"`
	Dimensions     *int     `json:"dimensions,omitempty"`
	User           string   `json:"user,omitempty"`
}

type embeddingResponse struct {
	Model string          `json:"model"`
	Data  []embeddingData `json:"data"`
	Usage apiUsage        `json:"usage"`
}

type embeddingData struct {
	Index     int    `json:"index"`
	Embedding vector `json:"embedding"`
}

// vector decodes an embedding sent either as a JSON number array or, with
// encoding_format "base64", as base64 of little-endian float32 values.
type vector []float64

func (v *vector) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || data[0] != '"' {
		var fs []float64
		if err := json.Unmarshal(data, &fs); err != nil {
			return err
		}
		*v = fs
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return fmt.Errorf("base64 embedding: %w", err)
	}
	if len(raw)%4 != 0 {
		return fmt.Errorf("base64 embedding: %d bytes is not a whole number of float32 values", len(raw))
	}

	fs := make([]float64, len(raw)/4)
	for i := range fs {
		fs[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:])))
	}
	*v = fs

	return nil
}
