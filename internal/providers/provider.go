// Package providers implements the LLM adapter contract: streaming chat
// completion with incremental tokens and tool calls. Adapters are
// hot-swappable — selection is configuration-driven via Registry, and the
// Voice Pipeline depends only on the Provider interface.
package providers

import (
	"context"

	"github.com/voxbridge/voicecore/internal/types"
)

// ChatRequest is the stream_chat contract's input: conversation history,
// optional tool descriptors, and sampling parameters.
type ChatRequest struct {
	System      string
	Messages    []types.Message
	Tools       []types.ToolDescriptor
	Temperature float32
	MaxTokens   int
}

// Provider is the narrow capability set an LLM adapter must implement.
// Tokens stream incrementally; tool calls may appear instead of tokens.
type Provider interface {
	// ID returns the provider identifier used for registry lookup and logging.
	ID() string

	// StreamChat streams tokens and tool calls for the given request. The
	// returned channel is closed when the stream ends (TokenEventDone) or
	// fails (TokenEventError); callers must drain it or cancel ctx.
	StreamChat(ctx context.Context, req ChatRequest) (<-chan types.TokenEvent, error)

	// Close releases provider resources (HTTP connections, etc).
	Close() error
}
