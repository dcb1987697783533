// Package providers groups the provider adapters. Each sub-package turns the
// portable request types of the capability packages into the REST calls of
// one vendor API, using the shared client in
// [github.com/germanamz/modelkit/pkg/modeladapter]:
//   - [github.com/germanamz/modelkit/pkg/providers/openai]: chat, embedding, image, speech and transcription
//   - [github.com/germanamz/modelkit/pkg/providers/anthropic]: Messages API chat, plus OpenAI-shaped embedding and image endpoints
//   - [github.com/germanamz/modelkit/pkg/providers/grok]: xAI, reusing the OpenAI-compatible models
//
// This package contains no code.
package providers
