package stt

import (
	"context"

	"github.com/voxbridge/voicecore/internal/audio"
	"github.com/voxbridge/voicecore/internal/types"
)

// StreamingService is the stream_transcribe contract: inbound audio chunks
// in, a stream of TranscriptEvents out. Implementations MUST surface an
// explicit EndOfTurn signal, either model-native (Deepgram) or derived from
// VAD silence (the Whisper batching adapter).
type StreamingService interface {
	// Name returns the provider identifier.
	Name() string

	// StreamTranscribe consumes chunks until the context is canceled or the
	// input channel closes, emitting TranscriptEvents on the returned channel.
	// The returned channel is closed when transcription ends.
	StreamTranscribe(ctx context.Context, chunks <-chan *types.AudioChunk) (<-chan types.TranscriptEvent, error)
}

// UtteranceBatchingService adapts a batch Service (Whisper) to the streaming
// contract by buffering audio through a VAD/turn-detection Session: silence
// of the configured threshold marks EndOfTurn, at which point the
// accumulated utterance is sent to the batch service and its text emitted
// as a single Final event. It cannot satisfy the sub-300ms first-token
// latency target the streaming contract describes for model-native
// adapters — this is an explicit tradeoff, not a bug, for providers (like
// Whisper) that expose no incremental transcript.
type UtteranceBatchingService struct {
	batch   Service
	config  TranscriptionConfig
	session *audio.Session
}

// NewUtteranceBatchingService wraps a batch Service with VAD-derived turn
// detection. silenceThreshold controls how much silence marks end-of-turn.
func NewUtteranceBatchingService(batch Service, config TranscriptionConfig, session *audio.Session) *UtteranceBatchingService {
	return &UtteranceBatchingService{batch: batch, config: config, session: session}
}

func (s *UtteranceBatchingService) Name() string {
	return s.batch.Name()
}

// StreamTranscribe buffers raw PCM until the session's turn detector signals
// EndOfTurn, then transcribes the accumulated utterance in one batch call.
func (s *UtteranceBatchingService) StreamTranscribe(
	ctx context.Context, chunks <-chan *types.AudioChunk,
) (<-chan types.TranscriptEvent, error) {
	out := make(chan types.TranscriptEvent, 8)

	go func() {
		defer close(out)

		for {
			select {
			case <-ctx.Done():
				return
			case chunk, ok := <-chunks:
				if !ok {
					return
				}

				wasSpeaking := s.session.IsUserSpeaking()
				if err := s.session.Process(ctx, chunk); err != nil {
					out <- types.TranscriptEvent{Kind: types.EventSTTError, ErrKind: types.ProviderErrorFatal, Err: err}
					return
				}

				if !wasSpeaking && s.session.IsUserSpeaking() {
					out <- types.TranscriptEvent{Kind: types.EventStartTurn}
				}

				select {
				case <-s.session.OnTurnDetected():
					audioBuf := s.session.GetAccumulatedAudio()
					text, err := s.batch.Transcribe(ctx, audioBuf, s.config)
					if err != nil {
						out <- types.TranscriptEvent{Kind: types.EventSTTError, ErrKind: types.ProviderErrorTransient, Err: err}
						s.session.Reset()
						continue
					}
					if text != "" {
						out <- types.TranscriptEvent{Kind: types.EventFinal, Text: text, Confidence: 1.0}
					}
					out <- types.TranscriptEvent{Kind: types.EventEndTurn, Confidence: 1.0}
					s.session.Reset()
				default:
				}
			}
		}
	}()

	return out, nil
}
