package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/voxbridge/voicecore/internal/types"
)

func TestNewAnthropicProvider(t *testing.T) {
	p := NewAnthropicProvider("anthropic-1", "claude-sonnet", "http://localhost", testAPIKeyCredential("sk-ant-test"))

	if p.ID() != "anthropic-1" {
		t.Errorf("ID() = %q, want anthropic-1", p.ID())
	}
}

func TestAnthropicProvider_StreamChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, `data: {"type":"content_block_delta","delta":{"type":"text_delta","text":"hi "}}`+"\n\n")
		fmt.Fprint(w, `data: {"type":"content_block_delta","delta":{"type":"text_delta","text":"there"}}`+"\n\n")
		fmt.Fprint(w, `data: {"type":"message_stop"}`+"\n\n")
	}))
	defer srv.Close()

	p := NewAnthropicProvider("anthropic-1", "claude-sonnet", srv.URL, testAPIKeyCredential("sk-ant-test"))
	defer p.Close()

	ch, err := p.StreamChat(context.Background(), ChatRequest{
		Messages: []types.Message{{Role: types.RoleUser, Content: "hello"}},
	})
	if err != nil {
		t.Fatalf("StreamChat() error = %v", err)
	}

	var deltas []string
	var gotDone bool
	for ev := range ch {
		switch ev.Kind {
		case types.TokenEventDelta:
			deltas = append(deltas, ev.Delta)
		case types.TokenEventDone:
			gotDone = true
		}
	}

	if !gotDone {
		t.Error("expected a done event")
	}
	if len(deltas) != 2 || deltas[1] != "there" {
		t.Errorf("deltas = %v", deltas)
	}
}

func TestAnthropicProvider_StreamChat_ToolUse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, `data: {"type":"content_block_start","content_block":{"type":"tool_use","name":"book_meeting"}}`+"\n\n")
		fmt.Fprint(w, `data: {"type":"content_block_delta","delta":{"type":"input_json_delta","partial_json":"{\"title\":"}}`+"\n\n")
		fmt.Fprint(w, `data: {"type":"content_block_delta","delta":{"type":"input_json_delta","partial_json":"\"demo\"}"}}`+"\n\n")
		fmt.Fprint(w, `data: {"type":"content_block_stop"}`+"\n\n")
		fmt.Fprint(w, `data: {"type":"message_stop"}`+"\n\n")
	}))
	defer srv.Close()

	p := NewAnthropicProvider("anthropic-1", "claude-sonnet", srv.URL, testAPIKeyCredential("sk-ant-test"))
	defer p.Close()

	ch, err := p.StreamChat(context.Background(), ChatRequest{
		Messages: []types.Message{{Role: types.RoleUser, Content: "book a meeting"}},
	})
	if err != nil {
		t.Fatalf("StreamChat() error = %v", err)
	}

	var gotTool *types.ToolCallEvent
	for ev := range ch {
		if ev.Kind == types.TokenEventToolCall {
			gotTool = ev.ToolCall
		}
	}

	if gotTool == nil {
		t.Fatal("expected a tool call event")
	}
	if gotTool.Name != "book_meeting" {
		t.Errorf("tool name = %q", gotTool.Name)
	}
	if gotTool.Args["title"] != "demo" {
		t.Errorf("tool args = %v", gotTool.Args)
	}
}

func TestAnthropicProvider_StreamChat_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	p := NewAnthropicProvider("anthropic-1", "claude-sonnet", srv.URL, testAPIKeyCredential("sk-ant-bad"))
	defer p.Close()

	_, err := p.StreamChat(context.Background(), ChatRequest{
		Messages: []types.Message{{Role: types.RoleUser, Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected an error for 400 response")
	}
}
