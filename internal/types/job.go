// Package types holds the shared domain entities for the dialer and voice
// pipeline: DialerJob, CallSession, TranscriptTurn, RecordingBuffer,
// ActionPlan/ActionStep, and the streaming event types that cross provider
// adapter boundaries.
package types

import "time"

// MaxAttempts is the hard ceiling on DialerJob attempt_number.
const MaxAttempts = 3

// HighPriorityThreshold is the minimum priority routed to the priority queue.
const HighPriorityThreshold = 8

// JobStatus is a closed tagged variant for DialerJob lifecycle state.
type JobStatus string

const (
	JobStatusPending         JobStatus = "pending"
	JobStatusQueued          JobStatus = "queued"
	JobStatusProcessing      JobStatus = "processing"
	JobStatusRetryScheduled  JobStatus = "retry_scheduled"
	JobStatusCompleted       JobStatus = "completed"
	JobStatusFailed          JobStatus = "failed"
	JobStatusNonRetryable    JobStatus = "non_retryable"
)

// CallOutcome is a closed tagged variant for the result of a dialed call,
// reported by the Voice Pipeline to the Dialer Worker.
type CallOutcome string

const (
	OutcomeAnswered     CallOutcome = "answered"
	OutcomeGoalAchieved CallOutcome = "goal_achieved"
	OutcomeBusy         CallOutcome = "busy"
	OutcomeNoAnswer     CallOutcome = "no_answer"
	OutcomeTimeout      CallOutcome = "timeout"
	OutcomeFailed       CallOutcome = "failed"
	OutcomeVoicemail    CallOutcome = "voicemail"
	OutcomeSpam         CallOutcome = "spam"
	OutcomeInvalid      CallOutcome = "invalid"
	OutcomeUnavailable  CallOutcome = "unavailable"
	OutcomeDisconnected CallOutcome = "disconnected"
	OutcomeRejected     CallOutcome = "rejected"
)

// Retryable reports whether this outcome is eligible for a retry attempt,
// independent of the attempt-count ceiling (see the retry policy table in §4.7).
func (o CallOutcome) Retryable() bool {
	switch o {
	case OutcomeBusy, OutcomeNoAnswer, OutcomeTimeout, OutcomeFailed, OutcomeVoicemail:
		return true
	default:
		return false
	}
}

// Terminal reports whether this outcome ends the job with no further retries,
// regardless of attempt count (spam, invalid numbers, etc. are never retried).
func (o CallOutcome) Terminal() bool {
	switch o {
	case OutcomeAnswered, OutcomeGoalAchieved,
		OutcomeSpam, OutcomeInvalid, OutcomeUnavailable, OutcomeDisconnected, OutcomeRejected:
		return true
	default:
		return false
	}
}

// DialerJob is an outbound call job moving through the queue, scheduled set,
// processing set, and terminal persistence. At any instant it resides in
// exactly one of those locations.
type DialerJob struct {
	JobID         string     `json:"job_id"`
	CampaignID    string     `json:"campaign_id"`
	LeadID        string     `json:"lead_id"`
	TenantID      string     `json:"tenant_id"`
	PhoneNumber   string     `json:"phone_number"`
	Priority      int        `json:"priority"` // 1-10
	Status        JobStatus  `json:"status"`
	AttemptNumber int        `json:"attempt_number"` // >= 1
	ScheduledAt   time.Time  `json:"scheduled_at"`
	CreatedAt     time.Time  `json:"created_at"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	LastOutcome   *CallOutcome `json:"last_outcome,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
	CallID        string     `json:"call_id,omitempty"`
}

// IsHighPriority reports whether the job routes to the priority queue.
func (j *DialerJob) IsHighPriority() bool {
	return j.Priority >= HighPriorityThreshold
}

// CanRetry reports whether another attempt is still within MaxAttempts.
func (j *DialerJob) CanRetry() bool {
	return j.AttemptNumber < MaxAttempts
}

// NextAttempt returns a copy of the job advanced to the next attempt,
// reset to pending for re-enqueue.
func (j *DialerJob) NextAttempt() DialerJob {
	next := *j
	next.AttemptNumber++
	next.Status = JobStatusPending
	next.ProcessedAt = nil
	next.CompletedAt = nil
	return next
}
