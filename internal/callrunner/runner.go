// Package callrunner wires the Dialer Worker to the Voice Pipeline: it
// initiates one outbound call via a TelephonyCaller, binds the resulting
// Media Gateway to a new Pipeline, and reports the pipeline's terminal
// outcome back to the worker. It satisfies dialer.CallRunner without
// importing the dialer package, per the capability-set dispatch pattern
// (§9).
package callrunner

import (
	"context"
	"fmt"
	"time"

	"github.com/voxbridge/voicecore/internal/logger"
	"github.com/voxbridge/voicecore/internal/media"
	"github.com/voxbridge/voicecore/internal/providers"
	"github.com/voxbridge/voicecore/internal/recording"
	"github.com/voxbridge/voicecore/internal/stt"
	"github.com/voxbridge/voicecore/internal/tts"
	"github.com/voxbridge/voicecore/internal/types"
	"github.com/voxbridge/voicecore/internal/voicepipeline"
)

// TelephonyCaller initiates one outbound call and returns a connected Media
// Gateway once the far end answers. Its concrete implementation (SIP
// signaling, a telephony provider's REST/WebSocket API) is an external
// collaborator; RunCall depends only on this contract.
type TelephonyCaller interface {
	InitiateCall(ctx context.Context, job *types.DialerJob) (media.Gateway, error)
}

// STTFactory builds a fresh StreamingService for one call. STT adapters
// hold per-connection state (a websocket, a VAD session), so a Runner needs
// one instance per call rather than a single shared adapter.
type STTFactory func() (stt.StreamingService, error)

// Runner implements the dialer's CallRunner by driving one call through
// the Voice Pipeline end to end.
type Runner struct {
	Telephony   TelephonyCaller
	NewSTT      STTFactory
	LLM         providers.Provider
	TTS         tts.Service
	TTSConfig   tts.SynthesisConfig
	AgentConfig types.AgentConfig
	IdleTimeout time.Duration

	// RecordingSink, if set, receives the call's recording and transcript
	// on completion. Nil disables export.
	RecordingSink recording.StorageSink
}

// RunCall initiates job's call, runs the Voice Pipeline against it to a
// terminal outcome, and exports the recording and transcript before
// returning. The Media Gateway and STT connection are always closed, even
// if the pipeline returns an error.
func (r *Runner) RunCall(ctx context.Context, job *types.DialerJob) (types.CallOutcome, error) {
	gw, err := r.Telephony.InitiateCall(ctx, job)
	if err != nil {
		return types.OutcomeFailed, fmt.Errorf("callrunner: initiate call: %w", err)
	}
	defer func() {
		if err := gw.Close(); err != nil {
			logger.Warn("callrunner: gateway close failed", "job_id", job.JobID, "error", err.Error())
		}
	}()

	sttSvc, err := r.NewSTT()
	if err != nil {
		return types.OutcomeFailed, fmt.Errorf("callrunner: build stt: %w", err)
	}

	session := types.NewCallSession(job.CallID, job.TenantID, job.CampaignID, job.LeadID, r.AgentConfig)

	pipeline := voicepipeline.New(voicepipeline.Config{
		Gateway:     gw,
		STT:         sttSvc,
		LLM:         r.LLM,
		TTS:         r.TTS,
		TTSConfig:   r.TTSConfig,
		Session:     session,
		IdleTimeout: r.IdleTimeout,
	})

	outcome, runErr := pipeline.Run(ctx)
	if runErr != nil {
		logger.Error("callrunner: pipeline run failed", "job_id", job.JobID, "call_id", job.CallID, "error", runErr.Error())
	}

	if r.RecordingSink != nil {
		if err := recording.Export(ctx, r.RecordingSink, session); err != nil {
			logger.Warn("callrunner: recording export failed", "job_id", job.JobID, "call_id", job.CallID, "error", err.Error())
		}
	}

	return outcome, runErr
}
