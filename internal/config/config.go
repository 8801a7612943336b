// Package config loads voicecore's process configuration from the
// environment. There is no configuration-file format: every setting is an
// environment variable, resolved once at startup and passed explicitly into
// the components that need it (no package-level globals).
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/voxbridge/voicecore/internal/apperrors"
	"github.com/voxbridge/voicecore/internal/credentials"
)

// ProviderConfig names one STT, LLM, or TTS adapter and resolves its
// credential from the environment using the same chain credentials.Resolve
// implements: explicit key, credential file, named env var, then the
// provider's own default env vars.
type ProviderConfig struct {
	Kind   string // "deepgram", "openai", "anthropic", "cartesia", "elevenlabs", "mock"
	Model  string
	APIKey string
}

// Config is the fully resolved process configuration. Load returns one of
// these; nothing downstream reads the environment directly.
type Config struct {
	// Production gates fallback policy: in production, an unreachable
	// shared store or queue backend is fatal at startup rather than
	// silently degrading to in-memory operation (§4.5, §7).
	Production bool

	RedisURL string

	STT ProviderConfig
	LLM ProviderConfig
	TTS ProviderConfig

	// MediaAddr is the listen address for the voice gateway's browser/
	// telephony WebSocket endpoints.
	MediaAddr string
	// MetricsAddr is the listen address for the Prometheus /metrics
	// endpoint.
	MetricsAddr string

	// OTLPEndpoint is the OpenTelemetry collector endpoint. Empty disables
	// tracing.
	OTLPEndpoint string

	// DialerWorkers is the number of concurrent Worker loops to run per
	// dialer process (§4.8).
	DialerWorkers int

	// RetryDelay is the base delay before a retryable outcome is
	// re-enqueued (§4.7).
	RetryDelay time.Duration

	// CallIdleTimeout closes a call's voice pipeline after this long with
	// no STT activity (§4.4).
	CallIdleTimeout time.Duration

	// RecordingDir is the base directory call recordings are durably
	// stored under. In production this backs a content-addressed,
	// deduplicating storage.MediaStorageService; outside production it
	// backs a plain directory of per-call WAV files (§4.3).
	RecordingDir string

	// RecordingPolicy is the retention policy name applied to every
	// stored recording in production, e.g. "retain-90days".
	RecordingPolicy string
}

const (
	envProduction      = "VOICECORE_PRODUCTION"
	envRedisURL        = "VOICECORE_REDIS_URL"
	envSTTProvider     = "VOICECORE_STT_PROVIDER"
	envSTTModel        = "VOICECORE_STT_MODEL"
	envLLMProvider     = "VOICECORE_LLM_PROVIDER"
	envLLMModel        = "VOICECORE_LLM_MODEL"
	envTTSProvider     = "VOICECORE_TTS_PROVIDER"
	envTTSModel        = "VOICECORE_TTS_MODEL"
	envMediaAddr       = "VOICECORE_MEDIA_ADDR"
	envMetricsAddr     = "VOICECORE_METRICS_ADDR"
	envOTLPEndpoint    = "VOICECORE_OTLP_ENDPOINT"
	envDialerWorkers   = "VOICECORE_DIALER_WORKERS"
	envRetryDelay      = "VOICECORE_RETRY_DELAY"
	envCallIdleTimeout = "VOICECORE_CALL_IDLE_TIMEOUT"
	envRecordingDir    = "VOICECORE_RECORDING_DIR"
	envRecordingPolicy = "VOICECORE_RECORDING_POLICY"

	defaultMediaAddr       = ":8081"
	defaultMetricsAddr     = ":9090"
	defaultDialerWorkers   = 4
	defaultRetryDelay      = 2 * time.Hour
	defaultCallIdleTimeout = 30 * time.Second
	defaultRecordingPolicy = "retain-90days"
)

// Load resolves Config from the environment. It never reads a configuration
// file (§1 non-goals): every field comes from an env var or a documented
// default. Provider credentials are unresolved when the env var naming the
// provider is unset; StreamingServices() in the caller decides whether a
// missing provider is fatal.
func Load() (*Config, error) {
	cfg := &Config{
		Production:      boolEnv(envProduction, false),
		RedisURL:        os.Getenv(envRedisURL),
		MediaAddr:       stringEnv(envMediaAddr, defaultMediaAddr),
		MetricsAddr:     stringEnv(envMetricsAddr, defaultMetricsAddr),
		OTLPEndpoint:    os.Getenv(envOTLPEndpoint),
		DialerWorkers:   intEnv(envDialerWorkers, defaultDialerWorkers),
		RetryDelay:      durationEnv(envRetryDelay, defaultRetryDelay),
		CallIdleTimeout: durationEnv(envCallIdleTimeout, defaultCallIdleTimeout),
		RecordingDir:    stringEnv(envRecordingDir, filepath.Join(os.TempDir(), "voicecore-recordings")),
		RecordingPolicy: stringEnv(envRecordingPolicy, defaultRecordingPolicy),
	}

	var err error
	if cfg.STT, err = resolveProvider(envSTTProvider, envSTTModel); err != nil {
		return nil, err
	}
	if cfg.LLM, err = resolveProvider(envLLMProvider, envLLMModel); err != nil {
		return nil, err
	}
	if cfg.TTS, err = resolveProvider(envTTSProvider, envTTSModel); err != nil {
		return nil, err
	}

	if cfg.Production && cfg.RedisURL == "" {
		return nil, apperrors.NewKind("config", "load", apperrors.KindConfigMissing,
			fmt.Errorf("%s is required in production", envRedisURL))
	}

	return cfg, nil
}

// resolveProvider reads the provider kind and model from the named env
// vars and resolves its credential through the shared chain (§6). An unset
// kind is not an error: it means that slot (STT, LLM, or TTS) is
// unconfigured, which Load's caller may or may not require.
func resolveProvider(kindEnv, modelEnv string) (ProviderConfig, error) {
	kind := os.Getenv(kindEnv)
	if kind == "" {
		return ProviderConfig{}, nil
	}

	cred, err := credentials.Resolve(context.Background(), credentials.ResolverConfig{ProviderType: kind})
	if err != nil {
		return ProviderConfig{}, apperrors.NewKind("config", "resolve_provider", apperrors.KindConfigMissing, err)
	}

	apiKey := ""
	if keyed, ok := cred.(*credentials.APIKeyCredential); ok {
		apiKey = keyed.APIKey()
	}

	return ProviderConfig{
		Kind:   kind,
		Model:  os.Getenv(modelEnv),
		APIKey: apiKey,
	}, nil
}

func stringEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func boolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func intEnv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func durationEnv(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
