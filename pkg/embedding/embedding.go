// Package embedding defines the portable request and response types for
// embedding models.
package embedding

import (
	"fmt"

	"github.com/germanamz/modelkit/pkg/model"
)

// Model is implemented by every embedding adapter.
type Model = model.Model[Request, *Response]

// Request asks for one embedding per input text.
type Request struct {
	Inputs  []string
	Options *Options
}

// NewRequest creates a Request for the given inputs.
func NewRequest(inputs ...string) Request {
	return Request{Inputs: inputs}
}

// Validate checks the request preconditions.
func (r Request) Validate() error {
	if len(r.Inputs) == 0 {
		return fmt.Errorf("embedding: %w: at least one input is required", model.ErrInvalidRequest)
	}
	return nil
}

// Options configures an embedding call.
type Options struct {
	Model          string
	EncodingFormat string // "float" or "base64"; both decode to float64 vectors.
	Dimensions     *int
	User           string
}

// Merge layers override on top of o and returns the result.
func (o Options) Merge(override Options) Options {
	return Options{
		Model:          model.Merge(o.Model, override.Model),
		EncodingFormat: model.Merge(o.EncodingFormat, override.EncodingFormat),
		Dimensions:     model.MergePtr(o.Dimensions, override.Dimensions),
		User:           model.Merge(o.User, override.User),
	}
}

// Embedding is the vector for the input at Index.
type Embedding struct {
	Index  int
	Vector []float64
}

// Response holds the embeddings returned by a call, ordered by index.
type Response struct {
	Embeddings []Embedding
	Metadata   model.Metadata
}

// Result returns the first embedding vector, or nil when the response is empty.
func (r *Response) Result() []float64 {
	if r == nil || len(r.Embeddings) == 0 {
		return nil
	}
	return r.Embeddings[0].Vector
}
