package model

import "context"

// Model executes one request against an upstream model and returns the
// normalized response. Implementations are safe for concurrent use.
type Model[Req, Resp any] interface {
	Call(ctx context.Context, req Req) (Resp, error)
}

// Func adapts an ordinary function to the Model interface.
type Func[Req, Resp any] func(ctx context.Context, req Req) (Resp, error)

// Call invokes f.
func (f Func[Req, Resp]) Call(ctx context.Context, req Req) (Resp, error) {
	return f(ctx, req)
}
