package chat

import "github.com/germanamz/modelkit/pkg/model"

// Generation is one candidate reply.
type Generation struct {
	Message      Message
	FinishReason string
}

// Response holds the generations returned by a chat call.
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

// Text returns the content of the first generation.
func (r *Response) Text() string {
	return r.Result().Message.Content
}
