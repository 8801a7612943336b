package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/voxbridge/voicecore/internal/apperrors"
	"github.com/voxbridge/voicecore/internal/credentials"
	"github.com/voxbridge/voicecore/internal/httputil"
	"github.com/voxbridge/voicecore/internal/types"
)

// OpenAIProvider adapts OpenAI's chat completions endpoint to the Provider
// contract, streaming tokens and tool calls over SSE.
type OpenAIProvider struct {
	BaseProvider
	model   string
	baseURL string
	apiKey  string
}

// NewOpenAIProvider creates an OpenAI chat-completion adapter.
func NewOpenAIProvider(id, model, baseURL string, cred credentials.Credential) *OpenAIProvider {
	base, apiKey := NewBaseProviderWithCredential(id, false, httputil.DefaultProviderTimeout, cred)
	return &OpenAIProvider{
		BaseProvider: base,
		model:        model,
		baseURL:      baseURL,
		apiKey:       apiKey,
	}
}

type openAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type openAITool struct {
	Type     string             `json:"type"`
	Function openAIToolFunction `json:"function"`
}

type openAIStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Index    int    `json:"index"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// StreamChat streams tokens for req over OpenAI's chat/completions SSE endpoint.
func (p *OpenAIProvider) StreamChat(ctx context.Context, req ChatRequest) (<-chan types.TokenEvent, error) {
	messages := make([]openAIChatMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openAIChatMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		messages = append(messages, openAIChatMessage{Role: string(m.Role), Content: m.Content})
	}

	body := map[string]any{
		"model":       p.model,
		"messages":    messages,
		"temperature": req.Temperature,
		"max_tokens":  req.MaxTokens,
		"stream":      true,
	}
	if len(req.Tools) > 0 {
		tools := make([]openAITool, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools = append(tools, openAITool{
				Type: "function",
				Function: openAIToolFunction{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.Schema,
				},
			})
		}
		body["tools"] = tools
	}

	reqBytes, err := json.Marshal(body)
	if err != nil {
		return nil, apperrors.NewKind("openai", "StreamChat", apperrors.KindFatalProvider, err)
	}

	url := p.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBytes))
	if err != nil {
		return nil, apperrors.NewKind("openai", "StreamChat", apperrors.KindFatalProvider, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.GetHTTPClient().Do(httpReq)
	if err != nil {
		return nil, apperrors.NewKind("openai", "StreamChat", apperrors.KindTransientProvider, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		kind := apperrors.KindTransientProvider
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			kind = apperrors.KindFatalProvider
		}
		return nil, apperrors.NewKind("openai", "StreamChat", kind, fmt.Errorf("openai chat completions: status %d", resp.StatusCode))
	}

	out := make(chan types.TokenEvent, 16)
	go streamOpenAISSE(ctx, resp, out)
	return out, nil
}

func streamOpenAISSE(ctx context.Context, resp *http.Response, out chan<- types.TokenEvent) {
	defer close(out)
	defer resp.Body.Close()

	scanner := NewSSEScanner(resp.Body)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			out <- types.TokenEvent{Kind: types.TokenEventError, ErrKind: types.ProviderErrorTransient, Err: ctx.Err()}
			return
		default:
		}

		data := scanner.Data()
		if data == "[DONE]" {
			out <- types.TokenEvent{Kind: types.TokenEventDone}
			return
		}

		var chunk openAIStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		choice := chunk.Choices[0]
		if choice.Delta.Content != "" {
			out <- types.TokenEvent{Kind: types.TokenEventDelta, Delta: choice.Delta.Content}
		}
		for _, tc := range choice.Delta.ToolCalls {
			if tc.Function.Name == "" {
				continue
			}
			var args map[string]any
			if tc.Function.Arguments != "" {
				if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
					args = map[string]any{}
				}
			}
			out <- types.TokenEvent{
				Kind:     types.TokenEventToolCall,
				ToolCall: &types.ToolCallEvent{Name: tc.Function.Name, Args: args},
			}
		}
		if choice.FinishReason != nil {
			out <- types.TokenEvent{Kind: types.TokenEventDone}
			return
		}
	}

	if err := scanner.Err(); err != nil {
		out <- types.TokenEvent{Kind: types.TokenEventError, ErrKind: types.ProviderErrorTransient, Err: err}
	}
}
