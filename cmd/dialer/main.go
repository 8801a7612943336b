// Command dialer runs the Dialer Worker pool: it drains the Queue
// Service, drives each job's call through the Voice Pipeline via
// callrunner.Runner, and applies the retry policy to the outcome.
//
// The concrete outbound call leg (SIP signaling or a carrier's calling
// API) is not wired here: TelephonyCaller is an external-integration
// seam, the same pattern dialer.JobStore and actionplan.AuditLogger
// already use for their own external collaborators. A production
// deployment supplies one by implementing callrunner.TelephonyCaller.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/voxbridge/voicecore/internal/adapters"
	"github.com/voxbridge/voicecore/internal/callrunner"
	"github.com/voxbridge/voicecore/internal/config"
	"github.com/voxbridge/voicecore/internal/dialer"
	"github.com/voxbridge/voicecore/internal/logger"
	"github.com/voxbridge/voicecore/internal/media"
	"github.com/voxbridge/voicecore/internal/metrics/prometheus"
	"github.com/voxbridge/voicecore/internal/queue"
	"github.com/voxbridge/voicecore/internal/telemetry"
	"github.com/voxbridge/voicecore/internal/types"
)

const envTenantIDs = "VOICECORE_TENANT_IDS"

func main() {
	if err := run(); err != nil {
		logger.Error("dialer: exited with error", "error", err.Error())
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
	if cfg.RedisURL == "" {
		return fmt.Errorf("%s is required", "VOICECORE_REDIS_URL")
	}

	if err := logger.Configure(&logger.LoggingConfigSpec{
		DefaultLevel: "info",
		Format:       logger.FormatJSON,
		CommonFields: map[string]string{"service": "dialer"},
	}); err != nil {
		return fmt.Errorf("configure logger: %w", err)
	}

	telemetry.SetupPropagation()
	if cfg.OTLPEndpoint != "" {
		tp, err := telemetry.NewTracerProvider(ctx, cfg.OTLPEndpoint, "dialer")
		if err != nil {
			return fmt.Errorf("start tracer provider: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				logger.Warn("dialer: tracer provider shutdown failed", "error", err.Error())
			}
		}()
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	defer func() { _ = client.Close() }()

	q := queue.New(client)

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

	runner := dialer.WithTimeout(&callrunner.Runner{
		Telephony:     unconfiguredTelephony{},
		NewSTT:        newSTT,
		LLM:           llm,
		TTS:           ttsSvc,
		AgentConfig:   agentConfig,
		IdleTimeout:   cfg.CallIdleTimeout,
		RecordingSink: recordingSink,
	}, dialer.MaxCallDuration)

	rotate := tenantRotation(os.Getenv(envTenantIDs))
	policy := dialer.RetryPolicy{Delay: cfg.RetryDelay}

	exporter := prometheus.NewExporter(cfg.MetricsAddr)
	go func() {
		if err := exporter.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("dialer: metrics exporter stopped", "error", err.Error())
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < cfg.DialerWorkers; i++ {
		w := &dialer.Worker{
			ID:        fmt.Sprintf("worker-%d", i),
			Queue:     q,
			Runner:    runner,
			Policy:    policy,
			TenantIDs: rotate,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("dialer: worker stopped", "worker_id", w.ID, "error", err.Error())
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		runPromoter(ctx, q)
	}()

	logger.Info("dialer: started", "workers", cfg.DialerWorkers, "metrics_addr", cfg.MetricsAddr)
	<-ctx.Done()
	logger.Info("dialer: shutting down")
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return exporter.Shutdown(shutdownCtx)
}

// runPromoter moves due jobs out of the scheduled set and back onto a
// queue once per tick, until ctx is canceled.
func runPromoter(ctx context.Context, q *queue.Service) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			promoted, err := q.PromoteDue(ctx, time.Now())
			if err != nil {
				logger.Error("dialer: promote due failed", "error", err.Error())
				continue
			}
			if promoted > 0 {
				logger.Debug("dialer: promoted scheduled jobs", "count", promoted)
			}
		}
	}
}

// tenantRotation returns a TenantIDs func that round-robins a static list
// parsed from a comma-separated env var. Each call returns the list
// rotated one position further, so repeated Dequeue calls visit tenants
// in a different starting order rather than always favoring the first.
func tenantRotation(raw string) func() []string {
	var tenants []string
	for _, t := range strings.Split(raw, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			tenants = append(tenants, t)
		}
	}
	if len(tenants) == 0 {
		return func() []string { return nil }
	}

	var mu sync.Mutex
	pos := 0
	return func() []string {
		mu.Lock()
		defer mu.Unlock()
		rotated := make([]string, len(tenants))
		for i := range tenants {
			rotated[i] = tenants[(pos+i)%len(tenants)]
		}
		pos = (pos + 1) % len(tenants)
		return rotated
	}
}

// unconfiguredTelephony is the default TelephonyCaller until a real
// carrier/SIP integration is wired in. It fails every call immediately so
// a misconfigured deployment surfaces at the first dequeued job rather
// than hanging.
type unconfiguredTelephony struct{}

func (unconfiguredTelephony) InitiateCall(context.Context, *types.DialerJob) (media.Gateway, error) {
	return nil, fmt.Errorf("dialer: no TelephonyCaller configured")
}
