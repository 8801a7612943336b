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

const anthropicVersion = "2023-06-01"

// AnthropicProvider adapts Anthropic's messages endpoint to the Provider
// contract, streaming tokens and tool calls over SSE.
type AnthropicProvider struct {
	BaseProvider
	model   string
	baseURL string
	apiKey  string
}

// NewAnthropicProvider creates an Anthropic messages-API chat adapter.
func NewAnthropicProvider(id, model, baseURL string, cred credentials.Credential) *AnthropicProvider {
	base, apiKey := NewBaseProviderWithCredential(id, false, httputil.DefaultProviderTimeout, cred)
	return &AnthropicProvider{
		BaseProvider: base,
		model:        model,
		baseURL:      baseURL,
		apiKey:       apiKey,
	}
}

type anthropicContentBlock struct {
	Type       string         `json:"type"`
	Text       string         `json:"text,omitempty"`
	Name       string         `json:"name,omitempty"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
}

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

type anthropicEvent struct {
	Type  string `json:"type"`
	Delta *struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		PartialJSON string `json:"partial_json"`
	} `json:"delta,omitempty"`
	ContentBlock *struct {
		Type string `json:"type"`
		Name string `json:"name"`
	} `json:"content_block,omitempty"`
}

// StreamChat streams tokens for req over Anthropic's messages SSE endpoint.
func (p *AnthropicProvider) StreamChat(ctx context.Context, req ChatRequest) (<-chan types.TokenEvent, error) {
	messages := make([]map[string]string, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, map[string]string{"role": string(m.Role), "content": m.Content})
	}

	body := map[string]any{
		"model":       p.model,
		"max_tokens":  req.MaxTokens,
		"messages":    messages,
		"temperature": req.Temperature,
		"stream":      true,
	}
	if req.System != "" {
		body["system"] = []anthropicContentBlock{{Type: "text", Text: req.System}}
	}
	if len(req.Tools) > 0 {
		tools := make([]anthropicTool, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools = append(tools, anthropicTool{Name: t.Name, Description: t.Description, InputSchema: t.Schema})
		}
		body["tools"] = tools
	}

	reqBytes, err := json.Marshal(body)
	if err != nil {
		return nil, apperrors.NewKind("anthropic", "StreamChat", apperrors.KindFatalProvider, err)
	}

	url := p.baseURL + "/v1/messages"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBytes))
	if err != nil {
		return nil, apperrors.NewKind("anthropic", "StreamChat", apperrors.KindFatalProvider, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	httpReq.Header.Set("x-api-key", p.apiKey)

	resp, err := p.GetHTTPClient().Do(httpReq)
	if err != nil {
		return nil, apperrors.NewKind("anthropic", "StreamChat", apperrors.KindTransientProvider, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		kind := apperrors.KindTransientProvider
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			kind = apperrors.KindFatalProvider
		}
		return nil, apperrors.NewKind("anthropic", "StreamChat", kind, fmt.Errorf("anthropic messages: status %d", resp.StatusCode))
	}

	out := make(chan types.TokenEvent, 16)
	go streamAnthropicSSE(ctx, resp, out)
	return out, nil
}

func streamAnthropicSSE(ctx context.Context, resp *http.Response, out chan<- types.TokenEvent) {
	defer close(out)
	defer resp.Body.Close()

	scanner := NewSSEScanner(resp.Body)
	var currentToolName string
	var currentToolArgs string
	inToolBlock := false

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			out <- types.TokenEvent{Kind: types.TokenEventError, ErrKind: types.ProviderErrorTransient, Err: ctx.Err()}
			return
		default:
		}

		var ev anthropicEvent
		if err := json.Unmarshal([]byte(scanner.Data()), &ev); err != nil {
			continue
		}

		switch ev.Type {
		case "content_block_start":
			if ev.ContentBlock != nil && ev.ContentBlock.Type == "tool_use" {
				inToolBlock = true
				currentToolName = ev.ContentBlock.Name
				currentToolArgs = ""
			}
		case "content_block_delta":
			if ev.Delta == nil {
				continue
			}
			switch ev.Delta.Type {
			case "text_delta":
				out <- types.TokenEvent{Kind: types.TokenEventDelta, Delta: ev.Delta.Text}
			case "input_json_delta":
				currentToolArgs += ev.Delta.PartialJSON
			}
		case "content_block_stop":
			if inToolBlock {
				var args map[string]any
				if currentToolArgs != "" {
					if err := json.Unmarshal([]byte(currentToolArgs), &args); err != nil {
						args = map[string]any{}
					}
				}
				out <- types.TokenEvent{
					Kind:     types.TokenEventToolCall,
					ToolCall: &types.ToolCallEvent{Name: currentToolName, Args: args},
				}
				inToolBlock = false
			}
		case "message_stop":
			out <- types.TokenEvent{Kind: types.TokenEventDone}
			return
		}
	}

	if err := scanner.Err(); err != nil {
		out <- types.TokenEvent{Kind: types.TokenEventError, ErrKind: types.ProviderErrorTransient, Err: err}
	}
}
