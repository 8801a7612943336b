// Package dialer implements the Retry Policy and Dialer Worker: the loop
// that dequeues jobs, initiates outbound calls, binds the Voice Pipeline,
// and drives retry decisions from the reported call outcome.
package dialer

import (
	"time"

	"github.com/voxbridge/voicecore/internal/types"
)

// DefaultRetryDelay is the default time a retried job waits in the
// scheduled set before promotion, per §4.7.
const DefaultRetryDelay = 2 * time.Hour

// Decision is the Retry Policy's verdict for one completed job attempt.
type Decision struct {
	// Retry is true when the job should be scheduled for another attempt.
	Retry bool
	// NextAttempt is the attempt_number the job would carry if retried.
	NextAttempt int
	// ExecuteAt is when the retry becomes due, set only if Retry is true.
	ExecuteAt time.Time
	// FinalStatus is the job status to persist (ignored if Retry is true).
	FinalStatus types.JobStatus
}

// RetryPolicy classifies a job's outcome after one attempt and decides
// whether to retry, following the table in §4.7: retryable outcomes are
// rescheduled while attempts remain, terminal outcomes never retry, and
// the third retryable failure still ends in FAILED.
type RetryPolicy struct {
	// Delay is the retry backoff. Zero uses DefaultRetryDelay.
	Delay time.Duration
	// Now returns the current time; overridable in tests.
	Now func() time.Time
}

// Decide evaluates outcome against job.AttemptNumber and returns the
// retry decision. It does not mutate job.
func (p *RetryPolicy) Decide(job *types.DialerJob, outcome types.CallOutcome) Decision {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}

	if outcome.Terminal() {
		return Decision{FinalStatus: p.terminalStatus(outcome)}
	}

	if !outcome.Retryable() {
		// Neither explicitly terminal nor retryable: treat conservatively
		// as terminal failure rather than retry an unrecognized outcome.
		return Decision{FinalStatus: types.JobStatusFailed}
	}

	if !job.CanRetry() {
		return Decision{FinalStatus: types.JobStatusFailed}
	}

	delay := p.Delay
	if delay <= 0 {
		delay = DefaultRetryDelay
	}

	return Decision{
		Retry:       true,
		NextAttempt: job.AttemptNumber + 1,
		ExecuteAt:   now().Add(delay),
	}
}

// terminalStatus maps a terminal outcome to the persisted job status.
// Success outcomes (answered, goal_achieved) complete the job; the
// remaining terminal outcomes (spam, invalid, unavailable, disconnected,
// rejected) are non-retryable failures.
func (p *RetryPolicy) terminalStatus(outcome types.CallOutcome) types.JobStatus {
	switch outcome {
	case types.OutcomeAnswered, types.OutcomeGoalAchieved:
		return types.JobStatusCompleted
	default:
		return types.JobStatusNonRetryable
	}
}
