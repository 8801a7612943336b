package audio

import (
	"context"
	"errors"
	"sync"

	"github.com/voxbridge/voicecore/internal/types"
)

// ErrSessionClosed is returned when operations are attempted on a closed session.
var ErrSessionClosed = errors.New("audio session closed")

// SessionConfig configures an audio Session.
type SessionConfig struct {
	// VAD is the voice activity detector to use.
	// If nil, a SimpleVAD with default params is created.
	VAD VADAnalyzer

	// TurnDetector determines when user has finished speaking.
	// If nil, turn detection is disabled.
	TurnDetector TurnDetector

	// InterruptionStrategy for handling user interruptions.
	// Default: InterruptionIgnore
	InterruptionStrategy InterruptionStrategy
}

// Session processes one call's inbound audio stream for voice-activity,
// turn detection, and barge-in signaling. It sits between the Media
// Gateway and the STT adapter: both receive the same audio chunks, but
// Session tracks VAD state locally so the Voice Pipeline can detect a
// barge-in (user speaking while TTS plays) without waiting on the STT
// adapter's own turn signal.
type Session struct {
	vad          VADAnalyzer
	turnDetector TurnDetector
	interruption *InterruptionHandler
	config       SessionConfig

	mu              sync.RWMutex
	turnDetected    chan struct{}
	interruptNotify chan struct{}
	closed          bool
}

// NewSession creates an audio Session bound to one call.
func NewSession(config SessionConfig) (*Session, error) {
	vad := config.VAD
	if vad == nil {
		var err error
		vad, err = NewSimpleVAD(DefaultVADParams())
		if err != nil {
			return nil, err
		}
	}

	var interruption *InterruptionHandler
	if config.InterruptionStrategy != InterruptionIgnore {
		interruption = NewInterruptionHandler(config.InterruptionStrategy, vad)
	}

	s := &Session{
		vad:             vad,
		turnDetector:    config.TurnDetector,
		interruption:    interruption,
		config:          config,
		turnDetected:    make(chan struct{}, 1),
		interruptNotify: make(chan struct{}, 1),
	}

	if interruption != nil {
		interruption.OnInterrupt(func() {
			s.notifyInterrupt()
		})
	}

	return s, nil
}

// Process runs VAD, interruption, and turn detection over one inbound
// audio chunk. Call this for every chunk the Media Gateway delivers.
func (s *Session) Process(ctx context.Context, chunk *types.AudioChunk) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrSessionClosed
	}
	s.mu.RUnlock()

	if _, err := s.vad.Analyze(ctx, chunk.Data); err != nil {
		return err
	}

	vadState := s.vad.State()

	if s.interruption != nil {
		if interrupted, _ := s.interruption.ProcessVADState(ctx, vadState); interrupted {
			s.notifyInterrupt()
		}
	}

	if s.turnDetector != nil {
		if _, err := s.turnDetector.ProcessAudio(ctx, chunk.Data); err != nil {
			return err
		}
		if endOfTurn, err := s.turnDetector.ProcessVADState(ctx, vadState); err != nil {
			return err
		} else if endOfTurn {
			s.notifyTurnDetected()
		}
	}

	return nil
}

// Close ends the session and releases its channels. Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.turnDetected)
	close(s.interruptNotify)

	return nil
}

// OnTurnDetected returns a channel that signals when a turn is detected.
func (s *Session) OnTurnDetected() <-chan struct{} {
	return s.turnDetected
}

// OnInterruption returns a channel that signals when user interrupts (barge-in).
func (s *Session) OnInterruption() <-chan struct{} {
	return s.interruptNotify
}

// VADState returns the current voice activity state.
func (s *Session) VADState() VADState {
	return s.vad.State()
}

// IsUserSpeaking returns true if the user is currently speaking.
func (s *Session) IsUserSpeaking() bool {
	if s.turnDetector != nil {
		return s.turnDetector.IsUserSpeaking()
	}
	state := s.vad.State()
	return state == VADStateSpeaking || state == VADStateStarting
}

// SetBotSpeaking notifies the session that bot is/isn't outputting audio.
// Required for interruption detection: barge-in only fires while the bot is speaking.
func (s *Session) SetBotSpeaking(speaking bool) {
	if s.interruption != nil {
		s.interruption.SetBotSpeaking(speaking)
	}
}

// Reset clears state for a new conversation turn.
func (s *Session) Reset() {
	s.vad.Reset()
	if s.turnDetector != nil {
		s.turnDetector.Reset()
	}
	if s.interruption != nil {
		s.interruption.Reset()
	}
}

func (s *Session) notifyTurnDetected() {
	select {
	case s.turnDetected <- struct{}{}:
	default:
	}
}

func (s *Session) notifyInterrupt() {
	select {
	case s.interruptNotify <- struct{}{}:
	default:
	}
}

// GetAccumulatedAudio returns audio accumulated during the current turn.
// Only available if TurnDetector implements AccumulatingTurnDetector.
func (s *Session) GetAccumulatedAudio() []byte {
	if acc, ok := s.turnDetector.(AccumulatingTurnDetector); ok {
		return acc.GetAccumulatedAudio()
	}
	return nil
}
