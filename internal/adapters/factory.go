// Package adapters builds concrete STT, LLM, and TTS adapters from a
// resolved config.ProviderConfig, keeping the cmd/ entrypoints free of
// per-provider constructor details.
package adapters

import (
	"fmt"

	"github.com/voxbridge/voicecore/internal/audio"
	"github.com/voxbridge/voicecore/internal/config"
	"github.com/voxbridge/voicecore/internal/credentials"
	"github.com/voxbridge/voicecore/internal/providers"
	"github.com/voxbridge/voicecore/internal/recording"
	"github.com/voxbridge/voicecore/internal/storage"
	"github.com/voxbridge/voicecore/internal/storage/local"
	"github.com/voxbridge/voicecore/internal/stt"
	"github.com/voxbridge/voicecore/internal/tts"
)

// NewLLM builds the Provider registry entry identified by cfg.
func NewLLM(id string, cfg config.ProviderConfig) (providers.Provider, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("adapters: llm provider not configured")
	}
	return providers.CreateProviderFromSpec(providers.ProviderSpec{
		ID:         id,
		Type:       cfg.Kind,
		Model:      cfg.Model,
		Credential: credentials.NewAPIKeyCredential(cfg.APIKey),
	})
}

// NewSTT returns a factory that builds a fresh StreamingService for one
// call. Deepgram streams natively; every other supported STT provider is
// a batch service wrapped in VAD-derived turn detection via
// stt.NewUtteranceBatchingService.
func NewSTT(cfg config.ProviderConfig) (func() (stt.StreamingService, error), error) {
	switch cfg.Kind {
	case "deepgram":
		return func() (stt.StreamingService, error) {
			return stt.NewDeepgramService(cfg.APIKey), nil
		}, nil
	case "openai", "whisper":
		return func() (stt.StreamingService, error) {
			batch := stt.NewOpenAI(cfg.APIKey)
			session, err := audio.NewSession(audio.SessionConfig{})
			if err != nil {
				return nil, fmt.Errorf("adapters: build audio session: %w", err)
			}
			return stt.NewUtteranceBatchingService(batch, stt.TranscriptionConfig{
				Format: "pcm", SampleRate: 16000, Channels: 1,
			}, session), nil
		}, nil
	case "":
		return nil, fmt.Errorf("adapters: stt provider not configured")
	default:
		return nil, fmt.Errorf("adapters: unsupported stt provider %q", cfg.Kind)
	}
}

// NewRecordingSink builds the call-recording StorageSink for cfg. In
// production, recordings flow through storage/local's content-addressed,
// deduplicating, policy-aware file store via recording.MediaStoreSink;
// outside production, a plain recording.FileSink under cfg.RecordingDir is
// enough for local development and ad hoc runs.
func NewRecordingSink(cfg *config.Config) (recording.StorageSink, error) {
	if !cfg.Production {
		return &recording.FileSink{Dir: cfg.RecordingDir}, nil
	}

	backend, err := local.NewFileStore(local.FileStoreConfig{
		BaseDir:             cfg.RecordingDir,
		Organization:        storage.OrganizationBySession,
		EnableDeduplication: true,
		DefaultPolicy:       cfg.RecordingPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("adapters: build recording file store: %w", err)
	}
	return &recording.MediaStoreSink{Backend: backend, PolicyName: cfg.RecordingPolicy}, nil
}

// NewTTS builds the TTS Service identified by cfg.
func NewTTS(cfg config.ProviderConfig) (tts.Service, error) {
	switch cfg.Kind {
	case "cartesia":
		return tts.NewCartesia(cfg.APIKey), nil
	case "elevenlabs":
		return tts.NewElevenLabs(cfg.APIKey), nil
	case "openai":
		return tts.NewOpenAI(cfg.APIKey), nil
	case "":
		return nil, fmt.Errorf("adapters: tts provider not configured")
	default:
		return nil, fmt.Errorf("adapters: unsupported tts provider %q", cfg.Kind)
	}
}
