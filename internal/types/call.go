package types

import "time"

// DialogueState is the closed tagged variant for a call's dialogue state
// machine (see the transition table in §4.4).
type DialogueState string

const (
	DialogueGreeting  DialogueState = "greeting"
	DialogueListening DialogueState = "listening"
	DialogueThinking  DialogueState = "thinking" // internal alias while an LLM turn is in flight
	DialogueSpeaking  DialogueState = "speaking"
	DialogueBargeIn   DialogueState = "barge_in"
	DialogueEnding    DialogueState = "ending"
	DialogueEnded     DialogueState = "ended"
)

// TurnRole identifies the speaker of a TranscriptTurn.
type TurnRole string

const (
	RoleUser      TurnRole = "user"
	RoleAssistant TurnRole = "assistant"
)

// TranscriptTurn is one immutable, ordered entry in a call's transcript.
type TranscriptTurn struct {
	Role       TurnRole  `json:"role"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	Confidence *float64  `json:"confidence,omitempty"`
}

// RecordingBuffer is the append-only sink of inbound raw PCM for one call.
// Chunks are appended by a single writer (the Media Gateway's inbound task).
type RecordingBuffer struct {
	CallID     string `json:"call_id"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	BitDepth   int    `json:"bit_depth"`
	Chunks     [][]byte
}

// TotalBytes returns the sum of all chunk lengths.
func (r *RecordingBuffer) TotalBytes() int {
	n := 0
	for _, c := range r.Chunks {
		n += len(c)
	}
	return n
}

// Append adds a chunk to the buffer. Not safe for concurrent callers; the
// buffer has exactly one writer per call.
func (r *RecordingBuffer) Append(chunk []byte) {
	r.Chunks = append(r.Chunks, chunk)
}

// AgentConfig carries the per-call agent configuration: which adapters to
// use and the system prompt driving the LLM.
type AgentConfig struct {
	STTProvider  string `json:"stt_provider"`
	LLMProvider  string `json:"llm_provider"`
	TTSProvider  string `json:"tts_provider"`
	LLMModel     string `json:"llm_model"`
	SystemPrompt string `json:"system_prompt"`
	Greeting     string `json:"greeting"`
	Temperature  float32 `json:"temperature"`
	MaxTokens    int    `json:"max_tokens"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// CallSession is one live call. The Voice Pipeline exclusively owns this
// value and the STT/LLM/TTS adapter instances bound to it; the Session
// Manager holds only a lookup reference.
type CallSession struct {
	CallID          string           `json:"call_id"`
	TenantID        string           `json:"tenant_id"`
	CampaignID      string           `json:"campaign_id"`
	LeadID          string           `json:"lead_id"`
	AgentConfig     AgentConfig      `json:"agent_config"`
	State           DialogueState    `json:"state"`
	TranscriptTurns []TranscriptTurn `json:"transcript_turns"`
	RecordingBuffer *RecordingBuffer `json:"-"`
	CreatedAt       time.Time        `json:"created_at"`
	LastActivity    time.Time        `json:"last_activity"`
	TurnCount       int              `json:"turn_count"`
	BargeInCount    int              `json:"barge_in_count"`
}

// NewCallSession initializes a CallSession in its greeting state.
func NewCallSession(callID, tenantID, campaignID, leadID string, cfg AgentConfig) *CallSession {
	now := timeNow()
	return &CallSession{
		CallID:      callID,
		TenantID:    tenantID,
		CampaignID:  campaignID,
		LeadID:      leadID,
		AgentConfig: cfg,
		State:       DialogueGreeting,
		RecordingBuffer: &RecordingBuffer{
			CallID:     callID,
			SampleRate: 16000,
			Channels:   1,
			BitDepth:   16,
		},
		CreatedAt:    now,
		LastActivity: now,
	}
}

// AppendTurn appends an immutable transcript turn and bumps last-activity.
func (s *CallSession) AppendTurn(role TurnRole, content string, confidence *float64) {
	s.TranscriptTurns = append(s.TranscriptTurns, TranscriptTurn{
		Role:       role,
		Content:    content,
		Timestamp:  timeNow(),
		Confidence: confidence,
	})
	if role == RoleUser {
		s.TurnCount++
	}
	s.LastActivity = timeNow()
}

// timeNow is the package's single time source, overridable in tests.
var timeNow = time.Now
