// Package voicepipeline implements the per-call orchestrator: it wires the
// Media Gateway, STT, LLM, and TTS adapters together, driving the dialogue
// state machine in §4.4 and detecting barge-in.
package voicepipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voxbridge/voicecore/internal/apperrors"
	"github.com/voxbridge/voicecore/internal/logger"
	"github.com/voxbridge/voicecore/internal/media"
	"github.com/voxbridge/voicecore/internal/metrics/prometheus"
	"github.com/voxbridge/voicecore/internal/providers"
	"github.com/voxbridge/voicecore/internal/stt"
	"github.com/voxbridge/voicecore/internal/tts"
	"github.com/voxbridge/voicecore/internal/types"
)

// inboundQueueDepth bounds the channel between inbound forwarding and the
// STT adapter. Overflow drops the oldest chunk and counts it (§5
// back-pressure policy for inbound audio).
const inboundQueueDepth = 32

// outboundQueueDepth bounds the channel between TTS output and outbound
// forwarding. Unlike inbound, overflow here blocks the producer (the TTS
// goroutine) briefly to pace playback to real time.
const outboundQueueDepth = 32

// sentenceFlushChars bounds how many characters of LLM token deltas
// accumulate before a partial sentence is flushed to TTS anyway, so a
// response with no punctuation still starts speaking promptly.
const sentenceFlushChars = 120

// Config wires one call's adapters and identifies the session they serve.
type Config struct {
	Gateway   media.Gateway
	STT       stt.StreamingService
	LLM       providers.Provider
	TTS       tts.Service
	TTSConfig tts.SynthesisConfig

	Session *types.CallSession

	// IdleTimeout triggers a graceful close when no STT events arrive for
	// this long while listening. Zero disables the idle close.
	IdleTimeout time.Duration
}

// Pipeline runs one live call: inbound audio forwarding (MG to STT),
// dialogue processing (STT to LLM to TTS), and outbound audio forwarding
// (TTS to MG), plus barge-in detection, as three concurrent activities
// sharing one CallSession.
type Pipeline struct {
	cfg Config

	mu          sync.Mutex
	state       types.DialogueState
	pendingText string // most recent STT Final text, consumed by the next EndOfTurn
	droppedIn   int

	turnCancel context.CancelFunc // cancels the in-flight LLM+TTS turn, for barge-in
	turnWG     sync.WaitGroup     // tracks the in-flight turn goroutine, so Run never closes outboundAudio under it

	lastOutcome types.CallOutcome // read by the deferred metrics recorder in Run
}

// New constructs a Pipeline for one call. The caller is responsible for
// having already connected cfg.Gateway before calling Run.
func New(cfg Config) *Pipeline {
	return &Pipeline{cfg: cfg, state: types.DialogueGreeting}
}

// State returns the pipeline's current dialogue state.
func (p *Pipeline) State() types.DialogueState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) setState(s types.DialogueState) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// Run drives the call to completion: plays the greeting, processes turns
// until hang-up, idle timeout, or a fatal provider error, persists the
// final transcript and recording, and returns the call outcome the Dialer
// Worker feeds into its retry policy.
func (p *Pipeline) Run(ctx context.Context) (types.CallOutcome, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	started := time.Now()
	prometheus.RecordCallStart()
	defer func() {
		prometheus.RecordCallEnd(string(p.lastOutcome), time.Since(started).Seconds())
	}()

	audioIn := make(chan *types.AudioChunk, inboundQueueDepth)
	outboundAudio := make(chan []byte, outboundQueueDepth)

	sttEvents, err := p.cfg.STT.StreamTranscribe(ctx, audioIn)
	if err != nil {
		p.lastOutcome = types.OutcomeFailed
		return types.OutcomeFailed, fmt.Errorf("voicepipeline: start stt: %w", err)
	}

	legs, legsCtx := errgroup.WithContext(ctx)
	legs.Go(func() error {
		p.forwardInbound(legsCtx, audioIn)
		return nil
	})
	legs.Go(func() error {
		p.forwardOutbound(legsCtx, outboundAudio)
		return nil
	})

	if err := p.playGreeting(ctx, outboundAudio); err != nil {
		logger.Warn("voicepipeline: greeting failed", "call_id", p.cfg.Session.CallID, "error", err.Error())
	}
	p.setState(types.DialogueListening)

	outcome, runErr := p.dialogueLoop(ctx, sttEvents, outboundAudio)
	p.lastOutcome = outcome

	cancel()
	p.turnWG.Wait() // no turn goroutine may still be sending once outboundAudio closes
	legs.Wait()     // errors are impossible here; both legs always return nil
	close(outboundAudio)

	p.setState(types.DialogueEnded)
	return outcome, runErr
}

// forwardInbound pulls audio from the Media Gateway and feeds the STT
// adapter. It is the MG->STT leg of the three concurrent activities.
func (p *Pipeline) forwardInbound(ctx context.Context, out chan<- *types.AudioChunk) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		chunk, err := p.cfg.Gateway.ReceiveAudio(ctx)
		if err != nil {
			return // EOF or context cancellation: MediaTransportClosed.
		}
		if chunk == nil {
			continue // idle timeout, no audio this interval.
		}

		select {
		case out <- chunk:
		default:
			// Inbound queue full: drop the oldest chunk to keep latency
			// bounded, per the §5 back-pressure policy.
			select {
			case <-out:
			default:
			}
			p.mu.Lock()
			p.droppedIn++
			p.mu.Unlock()
			select {
			case out <- chunk:
			default:
			}
		}
	}
}

// forwardOutbound drains synthesized audio to the Media Gateway. It is the
// TTS->MG leg; CancelPlayback on the gateway itself handles barge-in
// purges, so this loop only needs to keep delivering until closed.
func (p *Pipeline) forwardOutbound(ctx context.Context, in <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-in:
			if !ok {
				return
			}
			chunk := &types.AudioChunk{CallID: p.cfg.Session.CallID, Data: data}
			if err := p.cfg.Gateway.SendAudio(chunk); err != nil {
				logger.Warn("voicepipeline: send audio failed", "call_id", p.cfg.Session.CallID, "error", err.Error())
			}
		}
	}
}

// playGreeting synthesizes the configured greeting and forwards it before
// the call transitions out of DialogueGreeting.
func (p *Pipeline) playGreeting(ctx context.Context, outboundAudio chan<- []byte) error {
	greeting := p.cfg.Session.AgentConfig.Greeting
	if greeting == "" {
		return nil
	}
	return p.speak(ctx, greeting, outboundAudio)
}

// speak synthesizes text and streams the resulting audio onto
// outboundAudio, blocking until synthesis completes or ctx is canceled
// (e.g. by a barge-in).
func (p *Pipeline) speak(ctx context.Context, text string, outboundAudio chan<- []byte) error {
	ttsStart := time.Now()
	firstChunk := true
	events, err := tts.StreamSynthesize(ctx, p.cfg.TTS, text, p.cfg.TTSConfig)
	if err != nil {
		prometheus.RecordProviderError("tts", p.cfg.Session.AgentConfig.TTSProvider, "fatal")
		return fmt.Errorf("tts stream: %w", err)
	}
	for ev := range events {
		switch ev.Kind {
		case types.SynthesisChunk:
			if firstChunk {
				prometheus.RecordProviderLatency("tts", p.cfg.Session.AgentConfig.TTSProvider, time.Since(ttsStart).Seconds())
				firstChunk = false
			}
			select {
			case outboundAudio <- ev.Audio:
			case <-ctx.Done():
				return ctx.Err()
			}
		case types.SynthesisError:
			prometheus.RecordProviderError("tts", p.cfg.Session.AgentConfig.TTSProvider, "transient")
			return fmt.Errorf("tts: %w", ev.Err)
		case types.SynthesisDone:
			return nil
		}
	}
	return nil
}

// dialogueLoop consumes STT events and drives the dialogue state machine
// in §4.4 until the call ends.
func (p *Pipeline) dialogueLoop(ctx context.Context, sttEvents <-chan types.TranscriptEvent, outboundAudio chan<- []byte) (types.CallOutcome, error) {
	var idleTimer *time.Timer
	var idleC <-chan time.Time
	if p.cfg.IdleTimeout > 0 {
		idleTimer = time.NewTimer(p.cfg.IdleTimeout)
		defer idleTimer.Stop()
		idleC = idleTimer.C
	}
	resetIdle := func() {
		if idleTimer != nil {
			if !idleTimer.Stop() {
				select {
				case <-idleTimer.C:
				default:
				}
			}
			idleTimer.Reset(p.cfg.IdleTimeout)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return p.outcomeOnClose(), ctx.Err()

		case <-idleC:
			return types.OutcomeNoAnswer, nil

		case ev, ok := <-sttEvents:
			if !ok {
				return p.outcomeOnClose(), nil
			}
			resetIdle()

			switch ev.Kind {
			case types.EventStartTurn:
				// handled via Partial below for the barge-in threshold.

			case types.EventPartial:
				if ev.Text != "" && p.State() == types.DialogueSpeaking {
					p.bargeIn(outboundAudio)
				}

			case types.EventFinal:
				p.mu.Lock()
				p.pendingText = ev.Text
				p.mu.Unlock()
				if ev.Text != "" {
					p.cfg.Session.AppendTurn(types.RoleUser, ev.Text, &ev.Confidence)
					prometheus.RecordTurn("user")
				}

			case types.EventEndTurn:
				p.mu.Lock()
				text := p.pendingText
				p.pendingText = ""
				busy := p.turnCancel != nil
				p.mu.Unlock()
				if text == "" {
					// An EndOfTurn with no accumulated text must not
					// trigger an LLM call; return to listening.
					p.setState(types.DialogueListening)
					continue
				}
				if busy {
					// A turn is already in flight; the STT adapter should
					// not emit overlapping EndOfTurn events, but guard
					// against it rather than racing two LLM calls.
					continue
				}
				p.setState(types.DialogueThinking)
				p.turnWG.Add(1)
				go func() {
					defer p.turnWG.Done()
					p.runTurn(ctx, text, outboundAudio)
				}()

			case types.EventResumed:
				logger.Info("voicepipeline: stt resumed", "call_id", p.cfg.Session.CallID)

			case types.EventSTTError:
				if ev.ErrKind == types.ProviderErrorFatal {
					prometheus.RecordProviderError("stt", p.cfg.Session.AgentConfig.STTProvider, "fatal")
					return types.OutcomeFailed, apperrors.NewKind("voicepipeline", "stt", apperrors.KindFatalProvider, ev.Err)
				}
				prometheus.RecordProviderError("stt", p.cfg.Session.AgentConfig.STTProvider, "transient")
				logger.Warn("voicepipeline: stt transient error", "call_id", p.cfg.Session.CallID, "error", ev.Err)
			}
		}
	}
}

// bargeIn cancels the in-flight LLM+TTS turn and purges the Media
// Gateway's outbound queue, then returns straight to listening so the
// interrupting utterance is captured by the next Final/EndOfTurn pair. It
// is a no-op if nothing is speaking. Interrupting a turn that has not yet
// produced any TTS chunks still lands cleanly in DialogueListening, since
// drainNonBlocking is a no-op on an empty queue.
func (p *Pipeline) bargeIn(outboundAudio chan<- []byte) {
	p.mu.Lock()
	cancel := p.turnCancel
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	p.setState(types.DialogueBargeIn)
	p.cfg.Session.BargeInCount++
	prometheus.RecordBargeIn()
	cancel()
	p.cfg.Gateway.CancelPlayback()
	drainNonBlocking(outboundAudio)
	p.setState(types.DialogueListening)
}

func drainNonBlocking(ch <-chan []byte) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

// runTurn invokes the LLM with the accumulated transcript and streams the
// response to TTS as tokens arrive, flushing whenever a sentence boundary
// or the flush-length threshold is reached. A per-turn cancelable context
// lets bargeIn stop both the LLM stream and TTS mid-flight.
func (p *Pipeline) runTurn(ctx context.Context, finalText string, outboundAudio chan<- []byte) {
	turnCtx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.turnCancel = cancel
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.turnCancel = nil
		p.mu.Unlock()
		cancel()
	}()

	messages := make([]types.Message, 0, len(p.cfg.Session.TranscriptTurns))
	for _, t := range p.cfg.Session.TranscriptTurns {
		messages = append(messages, types.Message{Role: t.Role, Content: t.Content})
	}

	req := providers.ChatRequest{
		System:      p.cfg.Session.AgentConfig.SystemPrompt,
		Messages:    messages,
		Temperature: p.cfg.Session.AgentConfig.Temperature,
		MaxTokens:   p.cfg.Session.AgentConfig.MaxTokens,
	}

	llmStart := time.Now()
	tokens, err := p.cfg.LLM.StreamChat(turnCtx, req)
	if err != nil {
		prometheus.RecordProviderError("llm", p.cfg.Session.AgentConfig.LLMProvider, "fatal")
		p.speakFallback(turnCtx, outboundAudio)
		return
	}
	prometheus.RecordProviderLatency("llm", p.cfg.Session.AgentConfig.LLMProvider, time.Since(llmStart).Seconds())

	var sentence strings.Builder
	var full strings.Builder
	spoke := false

	flush := func() {
		text := sentence.String()
		sentence.Reset()
		if strings.TrimSpace(text) == "" {
			return
		}
		p.setState(types.DialogueSpeaking)
		spoke = true
		if err := p.speak(turnCtx, text, outboundAudio); err != nil {
			logger.Warn("voicepipeline: tts error", "call_id", p.cfg.Session.CallID, "error", err.Error())
		}
	}

	for ev := range tokens {
		select {
		case <-turnCtx.Done():
			return
		default:
		}

		switch ev.Kind {
		case types.TokenEventDelta:
			sentence.WriteString(ev.Delta)
			full.WriteString(ev.Delta)
			if endsSentence(ev.Delta) || sentence.Len() >= sentenceFlushChars {
				flush()
			}
		case types.TokenEventToolCall:
			logger.Info("voicepipeline: tool call", "call_id", p.cfg.Session.CallID, "tool", ev.ToolCall.Name)
		case types.TokenEventDone:
			flush()
		case types.TokenEventError:
			if ev.ErrKind == types.ProviderErrorFatal {
				p.speakFallback(turnCtx, outboundAudio)
				return
			}
			flush()
		}
	}

	if spoke {
		p.cfg.Session.AppendTurn(types.RoleAssistant, full.String(), nil)
		prometheus.RecordTurn("assistant")
	}
	p.setState(types.DialogueListening)
}

// speakFallback plays a short apologetic utterance when the LLM fails,
// per the §4.4 failure semantics, and ends the turn back in listening.
func (p *Pipeline) speakFallback(ctx context.Context, outboundAudio chan<- []byte) {
	const fallback = "Sorry, I'm having trouble right now. Could you say that again?"
	p.setState(types.DialogueSpeaking)
	if err := p.speak(ctx, fallback, outboundAudio); err != nil {
		logger.Warn("voicepipeline: fallback speak failed", "call_id", p.cfg.Session.CallID, "error", err.Error())
	}
	p.setState(types.DialogueListening)
}

// outcomeOnClose derives a terminal outcome from whatever the call
// accomplished before it ended. This mapping is a pragmatic default, not
// dictated by the transcribed sources: a call with at least one user turn
// counts as answered; one with none never connected a live speaker.
func (p *Pipeline) outcomeOnClose() types.CallOutcome {
	if p.cfg.Session.TurnCount > 0 {
		return types.OutcomeAnswered
	}
	return types.OutcomeNoAnswer
}

func endsSentence(delta string) bool {
	trimmed := strings.TrimRight(delta, " ")
	if trimmed == "" {
		return false
	}
	switch trimmed[len(trimmed)-1] {
	case '.', '!', '?':
		return true
	default:
		return false
	}
}
