// Package provider defines the wire-protocol contract the relay dispatches
// chat and image requests through. Each supported protocol lives in its own
// subpackage behind the same interfaces.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/lumichat/lumichat-relay/internal/chat"
)

// ChatRequest is the provider-agnostic input for a streamed chat call.
type ChatRequest struct {
	Model    string
	System   string
	Messages []chat.Message
}

// ImageRequest is the input for a non-streamed image generation or edit call.
type ImageRequest struct {
	Model  string
	Prompt string
	// ImageBase64 holds the source image data URL for edit calls; empty for
	// plain generation.
	ImageBase64 string
}

// Chunk is an OpenAI-shaped streaming chunk, the unified framing every
// protocol variant converts into.
type Chunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`
}

// ChunkChoice carries the incremental delta of a chunk.
type ChunkChoice struct {
	Index        int     `json:"index"`
	Delta        Delta   `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

// Delta is the incremental content of a stream chunk.
type Delta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// Content returns the text delta of the first choice, or "".
func (c *Chunk) Content() string {
	if c == nil || len(c.Choices) == 0 {
		return ""
	}
	return c.Choices[0].Delta.Content
}

// StreamEvent is one element of a provider token stream. Raw holds the JSON
// payload exactly as it should be relayed to the caller; Chunk is its parsed
// form. Err terminates the stream.
type StreamEvent struct {
	Chunk *Chunk
	Raw   []byte
	Err   error
}

// ChatProvider streams chat completions for one wire protocol.
type ChatProvider interface {
	Name() string
	// StreamChat forwards the request and returns a channel of stream events.
	// The channel is closed when the upstream stream ends or ctx is
	// cancelled. A non-2xx upstream status is returned as *StatusError.
	StreamChat(ctx context.Context, req ChatRequest) (<-chan StreamEvent, error)
}

// ImageProvider generates or edits a single image, returning its URL. Any
// upstream failure or missing response field is an error; callers treat all
// image errors as generation failure, not protocol errors.
type ImageProvider interface {
	GenerateImage(ctx context.Context, req ImageRequest) (string, error)
}

// StatusError preserves the upstream HTTP status so the relay can
// special-case rate limiting (429) and payment-required (402) responses.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: http %d: %s", e.Provider, e.StatusCode, e.Body)
}

// IsStatus reports whether err carries the given upstream status code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}
