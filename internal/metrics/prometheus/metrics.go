// Package prometheus exports call-pipeline, dialer, and action-plan
// metrics for scraping.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "voicecore"

var (
	// callsActive is a gauge of currently connected calls.
	callsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "calls_active",
			Help:      "Number of calls currently bound to a Voice Pipeline",
		},
	)

	// callDuration is a histogram of total call duration by terminal outcome.
	callDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "call_duration_seconds",
			Help:      "Duration of a call from pipeline start to terminal outcome",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"outcome"},
	)

	// bargeInsTotal counts barge-in events across all calls.
	bargeInsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "barge_ins_total",
			Help:      "Total number of barge-in events detected during TTS playback",
		},
	)

	// turnsTotal counts completed dialogue turns by speaker role.
	turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of transcript turns appended, by role",
		},
		[]string{"role"}, // user, assistant
	)

	// providerLatency is a histogram of STT/LLM/TTS provider call latency.
	providerLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_latency_seconds",
			Help:      "Latency of STT, LLM, and TTS provider calls, measured to first response unit",
			Buckets:   []float64{.05, .1, .25, .3, .5, 1, 2.5, 5, 10},
		},
		[]string{"stage", "provider"}, // stage: stt, llm, tts
	)

	// providerErrorsTotal counts provider errors by classification.
	providerErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Total provider errors, by stage, provider, and error kind",
		},
		[]string{"stage", "provider", "kind"}, // kind: transient, fatal
	)

	// providerTokensTotal counts LLM tokens consumed.
	providerTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_tokens_total",
			Help:      "Total LLM tokens consumed, by provider and direction",
		},
		[]string{"provider", "direction"}, // direction: input, output
	)

	// jobsEnqueuedTotal counts jobs entering the queue, by route.
	jobsEnqueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dialer_jobs_enqueued_total",
			Help:      "Total dialer jobs enqueued, by route",
		},
		[]string{"route"}, // priority, tenant
	)

	// jobsCompletedTotal counts terminal job outcomes.
	jobsCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dialer_jobs_completed_total",
			Help:      "Total dialer jobs reaching a terminal status, by outcome",
		},
		[]string{"outcome"},
	)

	// retriesScheduledTotal counts jobs moved to the scheduled-retry set.
	retriesScheduledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dialer_retries_scheduled_total",
			Help:      "Total dialer jobs scheduled for a retry attempt",
		},
	)

	// actionStepsTotal counts executed action-plan steps by type and result.
	actionStepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "action_plan_steps_total",
			Help:      "Total action-plan steps executed, by action type and result",
		},
		[]string{"type", "result"}, // result: ok, failed, skipped
	)

	allMetrics = []prometheus.Collector{
		callsActive,
		callDuration,
		bargeInsTotal,
		turnsTotal,
		providerLatency,
		providerErrorsTotal,
		providerTokensTotal,
		jobsEnqueuedTotal,
		jobsCompletedTotal,
		retriesScheduledTotal,
		actionStepsTotal,
	}
)

// RecordCallStart marks a call as bound to a running Voice Pipeline.
func RecordCallStart() {
	callsActive.Inc()
}

// RecordCallEnd marks a call's pipeline as terminal and records its total
// duration under its outcome.
func RecordCallEnd(outcome string, durationSeconds float64) {
	callsActive.Dec()
	callDuration.WithLabelValues(outcome).Observe(durationSeconds)
}

// RecordBargeIn records one barge-in event.
func RecordBargeIn() {
	bargeInsTotal.Inc()
}

// RecordTurn records one completed transcript turn for role ("user" or
// "assistant").
func RecordTurn(role string) {
	turnsTotal.WithLabelValues(role).Inc()
}

// RecordProviderLatency records the latency of one STT, LLM, or TTS call.
func RecordProviderLatency(stage, provider string, durationSeconds float64) {
	providerLatency.WithLabelValues(stage, provider).Observe(durationSeconds)
}

// RecordProviderError records a classified provider error.
func RecordProviderError(stage, provider, kind string) {
	providerErrorsTotal.WithLabelValues(stage, provider, kind).Inc()
}

// RecordProviderTokens records LLM token consumption.
func RecordProviderTokens(provider string, inputTokens, outputTokens int) {
	if inputTokens > 0 {
		providerTokensTotal.WithLabelValues(provider, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		providerTokensTotal.WithLabelValues(provider, "output").Add(float64(outputTokens))
	}
}

// RecordJobEnqueued records a dialer job entering the queue via route
// ("priority" or "tenant").
func RecordJobEnqueued(route string) {
	jobsEnqueuedTotal.WithLabelValues(route).Inc()
}

// RecordJobCompleted records a dialer job reaching a terminal status.
func RecordJobCompleted(outcome string) {
	jobsCompletedTotal.WithLabelValues(outcome).Inc()
}

// RecordRetryScheduled records a dialer job moved to the scheduled-retry set.
func RecordRetryScheduled() {
	retriesScheduledTotal.Inc()
}

// RecordActionStep records one executed action-plan step.
func RecordActionStep(actionType, result string) {
	actionStepsTotal.WithLabelValues(actionType, result).Inc()
}
