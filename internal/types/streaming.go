package types

// AudioChunk is a frame of PCM audio moving through the Media Gateway and
// provider adapters. Internally, audio is always 16 kHz mono 16-bit signed
// little-endian; gateway variants convert at their boundary.
type AudioChunk struct {
	CallID    string
	Data      []byte
	Timestamp int64 // unix nanos, set by the producer
}

// TranscriptEventKind is the closed tagged variant for STT stream events.
type TranscriptEventKind string

const (
	EventPartial    TranscriptEventKind = "partial"
	EventFinal      TranscriptEventKind = "final"
	EventStartTurn  TranscriptEventKind = "start_of_turn"
	EventEndTurn    TranscriptEventKind = "end_of_turn"
	EventResumed    TranscriptEventKind = "resumed"
	EventSTTError   TranscriptEventKind = "error"
)

// TranscriptEvent is one event from an STT adapter's stream_transcribe
// contract: Partial{text}, Final{text, confidence}, StartOfTurn,
// EndOfTurn{confidence}, Resumed, Error{kind}.
type TranscriptEvent struct {
	Kind       TranscriptEventKind
	Text       string
	Confidence float64
	ErrKind    ProviderErrorKind
	Err        error
}

// ProviderErrorKind classifies a provider-adapter failure as transient
// (reconnect once) or fatal (end the call with outcome FAILED).
type ProviderErrorKind string

const (
	ProviderErrorTransient ProviderErrorKind = "transient"
	ProviderErrorFatal     ProviderErrorKind = "fatal"
)

// Message is one entry in the LLM conversation history passed to stream_chat.
type Message struct {
	Role    TurnRole
	Content string
}

// ToolDescriptor describes a tool the LLM may call, exposed to stream_chat.
type ToolDescriptor struct {
	Name        string
	Description string
	Schema      map[string]any
}

// ToolCallEvent carries a tool invocation emitted instead of tokens by the
// LLM adapter. Args is always a structured map, never a raw string.
type ToolCallEvent struct {
	Name string
	Args map[string]any
}

// TokenEventKind is the closed tagged variant for LLM stream events.
type TokenEventKind string

const (
	TokenEventDelta    TokenEventKind = "delta"
	TokenEventToolCall TokenEventKind = "tool_call"
	TokenEventDone     TokenEventKind = "done"
	TokenEventError    TokenEventKind = "error"
)

// TokenEvent is one event from an LLM adapter's stream_chat contract: a
// token delta, a tool call, stream completion, or an error.
type TokenEvent struct {
	Kind     TokenEventKind
	Delta    string
	ToolCall *ToolCallEvent
	ErrKind  ProviderErrorKind
	Err      error
}

// SynthesisEventKind is the closed tagged variant for TTS stream events.
type SynthesisEventKind string

const (
	SynthesisChunk SynthesisEventKind = "chunk"
	SynthesisDone  SynthesisEventKind = "done"
	SynthesisError SynthesisEventKind = "error"
)

// SynthesisEvent is one event from a TTS adapter's stream_synthesize
// contract. Each Chunk event's Audio is independently playable.
type SynthesisEvent struct {
	Kind    SynthesisEventKind
	Audio   []byte
	ErrKind ProviderErrorKind
	Err     error
}
