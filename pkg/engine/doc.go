// Package engine is the composition root that turns a YAML configuration
// into ready-to-use models. Each configured provider becomes a [Provider]
// whose chat, embedding, image, speech and transcription models share one
// REST client and one retry policy. Provider kinds are resolved through a
// factory registry that callers can extend with [RegisterProvider].
package engine
