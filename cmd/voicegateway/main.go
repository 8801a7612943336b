// Command voicegateway serves inbound browser calls: it upgrades a
// WebSocket connection to a BrowserGateway, binds a Voice Pipeline to it,
// and runs the call to a terminal outcome.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/voxbridge/voicecore/internal/adapters"
	"github.com/voxbridge/voicecore/internal/config"
	"github.com/voxbridge/voicecore/internal/logger"
	"github.com/voxbridge/voicecore/internal/media"
	"github.com/voxbridge/voicecore/internal/metrics/prometheus"
	"github.com/voxbridge/voicecore/internal/providers"
	"github.com/voxbridge/voicecore/internal/recording"
	"github.com/voxbridge/voicecore/internal/statestore"
	"github.com/voxbridge/voicecore/internal/stt"
	"github.com/voxbridge/voicecore/internal/telemetry"
	"github.com/voxbridge/voicecore/internal/tts"
	"github.com/voxbridge/voicecore/internal/types"
	"github.com/voxbridge/voicecore/internal/voicepipeline"
)

func main() {
	if err := run(); err != nil {
		logger.Error("voicegateway: exited with error", "error", err.Error())
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Configure(&logger.LoggingConfigSpec{
		DefaultLevel: "info",
		Format:       logger.FormatJSON,
		CommonFields: map[string]string{"service": "voicegateway"},
	}); err != nil {
		return fmt.Errorf("configure logger: %w", err)
	}

	telemetry.SetupPropagation()
	if cfg.OTLPEndpoint != "" {
		tp, err := telemetry.NewTracerProvider(ctx, cfg.OTLPEndpoint, "voicegateway")
		if err != nil {
			return fmt.Errorf("start tracer provider: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				logger.Warn("voicegateway: tracer provider shutdown failed", "error", err.Error())
			}
		}()
	}

	sessions, closeSessions, err := newSessionManager(cfg)
	if err != nil {
		return fmt.Errorf("build session manager: %w", err)
	}
	defer closeSessions()

	llm, err := adapters.NewLLM("default", cfg.LLM)
	if err != nil {
		return fmt.Errorf("build llm provider: %w", err)
	}
	defer func() { _ = llm.Close() }()

	newSTT, err := adapters.NewSTT(cfg.STT)
	if err != nil {
		return fmt.Errorf("build stt factory: %w", err)
	}

	ttsSvc, err := adapters.NewTTS(cfg.TTS)
	if err != nil {
		return fmt.Errorf("build tts service: %w", err)
	}

	recordingSink, err := adapters.NewRecordingSink(cfg)
	if err != nil {
		return fmt.Errorf("build recording sink: %w", err)
	}

	agentConfig := types.AgentConfig{
		STTProvider: cfg.STT.Kind,
		LLMProvider: cfg.LLM.Kind,
		TTSProvider: cfg.TTS.Kind,
		LLMModel:    cfg.LLM.Model,
		IdleTimeout: cfg.CallIdleTimeout,
	}

	gw := &gatewayServer{
		sessions:    sessions,
		llm:         llm,
		newSTT:      newSTT,
		tts:         ttsSvc,
		agentConfig: agentConfig,
		idleTimeout: cfg.CallIdleTimeout,
		recording:   recordingSink,
	}

	exporter := prometheus.NewExporter(cfg.MetricsAddr)
	go func() {
		if err := exporter.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("voicegateway: metrics exporter stopped", "error", err.Error())
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/call", gw.handleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:              cfg.MediaAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("voicegateway: listening", "addr", cfg.MediaAddr)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("voicegateway: shutting down")
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return exporter.Shutdown(shutdownCtx)
}

// newSessionManager returns the Redis-backed SessionManager in production
// and an in-memory one otherwise (§4.5, §7 fallback policy).
func newSessionManager(cfg *config.Config) (statestore.SessionManager, func(), error) {
	if cfg.RedisURL == "" {
		if cfg.Production {
			return nil, nil, fmt.Errorf("%s is required in production", "VOICECORE_REDIS_URL")
		}
		store := statestore.NewMemoryStore()
		return store, func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	store := statestore.NewRedisStore(client)
	return store, func() { _ = client.Close() }, nil
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// gatewayServer binds each upgraded WebSocket connection to a fresh Voice
// Pipeline. LLM and TTS adapters are shared across calls (they hold no
// per-call state); STT is built fresh per call via newSTT.
type gatewayServer struct {
	sessions    statestore.SessionManager
	llm         providers.Provider
	newSTT      func() (stt.StreamingService, error)
	tts         tts.Service
	agentConfig types.AgentConfig
	idleTimeout time.Duration
	recording   recording.StorageSink
}

func (g *gatewayServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	campaignID := r.URL.Query().Get("campaign_id")
	leadID := r.URL.Query().Get("lead_id")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("voicegateway: websocket upgrade failed", "error", err.Error())
		return
	}

	callID := uuid.NewString()
	gw := media.NewBrowserGateway(callID, conn)

	ctx := r.Context()
	session := types.NewCallSession(callID, tenantID, campaignID, leadID, g.agentConfig)
	if err := g.sessions.Create(ctx, session); err != nil {
		logger.Error("voicegateway: session create failed", "call_id", callID, "error", err.Error())
		_ = gw.Close()
		return
	}
	defer func() {
		if err := g.sessions.End(context.Background(), callID); err != nil {
			logger.Warn("voicegateway: session end failed", "call_id", callID, "error", err.Error())
		}
	}()

	sttSvc, err := g.newSTT()
	if err != nil {
		logger.Error("voicegateway: stt build failed", "call_id", callID, "error", err.Error())
		_ = gw.Close()
		return
	}

	pipeline := voicepipeline.New(voicepipeline.Config{
		Gateway:     gw,
		STT:         sttSvc,
		LLM:         g.llm,
		TTS:         g.tts,
		Session:     session,
		IdleTimeout: g.idleTimeout,
	})

	outcome, err := pipeline.Run(ctx)
	if err != nil {
		logger.Error("voicegateway: pipeline run failed", "call_id", callID, "error", err.Error())
	}
	logger.Info("voicegateway: call ended", "call_id", callID, "outcome", string(outcome))

	if err := recording.Export(context.Background(), g.recording, session); err != nil {
		logger.Warn("voicegateway: recording export failed", "call_id", callID, "error", err.Error())
	}

	if err := gw.Close(); err != nil {
		logger.Warn("voicegateway: gateway close failed", "call_id", callID, "error", err.Error())
	}
}
