package providers

import (
	"context"
	"strings"

	"github.com/voxbridge/voicecore/internal/types"
)

// MockProvider is a deterministic Provider for tests: it echoes the last
// user message back token-by-token, split on spaces.
type MockProvider struct {
	id    string
	model string

	// Script, if set, overrides the echo behavior with a fixed response.
	Script []types.TokenEvent
}

// NewMockProvider creates a mock LLM adapter for tests.
func NewMockProvider(id, model string) *MockProvider {
	return &MockProvider{id: id, model: model}
}

func (m *MockProvider) ID() string { return m.id }

func (m *MockProvider) Close() error { return nil }

// StreamChat streams mock tokens. If Script is set, it is replayed verbatim;
// otherwise the last user message is echoed word by word.
func (m *MockProvider) StreamChat(ctx context.Context, req ChatRequest) (<-chan types.TokenEvent, error) {
	out := make(chan types.TokenEvent, 16)

	go func() {
		defer close(out)

		if len(m.Script) > 0 {
			for _, ev := range m.Script {
				select {
				case <-ctx.Done():
					return
				case out <- ev:
				}
			}
			return
		}

		last := ""
		for i := len(req.Messages) - 1; i >= 0; i-- {
			if req.Messages[i].Role == types.RoleUser {
				last = req.Messages[i].Content
				break
			}
		}

		words := strings.Fields(last)
		for _, w := range words {
			select {
			case <-ctx.Done():
				out <- types.TokenEvent{Kind: types.TokenEventError, ErrKind: types.ProviderErrorTransient, Err: ctx.Err()}
				return
			case out <- types.TokenEvent{Kind: types.TokenEventDelta, Delta: w + " "}:
			}
		}
		out <- types.TokenEvent{Kind: types.TokenEventDone}
	}()

	return out, nil
}
