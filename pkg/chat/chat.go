// Package chat defines the portable request and response types for chat
// completion models.
package chat

import (
	"fmt"

	"github.com/germanamz/modelkit/pkg/model"
)

// Model is implemented by every chat adapter.
type Model = model.Model[Prompt, *Response]

// Role identifies the author of a message.
type Role string

const (
	System    Role = "system"
	User      Role = "user"
	Assistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case System, User, Assistant:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// Message is a single turn of a conversation.
type Message struct {
	Role    Role
	Content string
}

// SystemMessage returns a system message with the given text.
func SystemMessage(text string) Message { return Message{Role: System, Content: text} }

// UserMessage returns a user message with the given text.
func UserMessage(text string) Message { return Message{Role: User, Content: text} }

// AssistantMessage returns an assistant message with the given text.
func AssistantMessage(text string) Message { return Message{Role: Assistant, Content: text} }

// Prompt is the instructions for one chat call plus optional per-call options.
type Prompt struct {
	Messages []Message
	Options  *Options
}

// NewPrompt creates a Prompt from the given messages.
func NewPrompt(msgs ...Message) Prompt {
	return Prompt{Messages: msgs}
}

// WithOptions returns a copy of p carrying o as its per-call options.
func (p Prompt) WithOptions(o Options) Prompt {
	p.Options = &o
	return p
}

// Validate checks the prompt preconditions.
func (p Prompt) Validate() error {
	if len(p.Messages) == 0 {
		return fmt.Errorf("chat: %w: at least one message is required", model.ErrInvalidRequest)
	}
	for i, m := range p.Messages {
		if !m.Role.Valid() {
			return fmt.Errorf("chat: %w: message %d has unknown role %q", model.ErrInvalidRequest, i, m.Role)
		}
	}
	return nil
}
