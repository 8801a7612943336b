package dialer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/voxbridge/voicecore/internal/apperrors"
	"github.com/voxbridge/voicecore/internal/logger"
	"github.com/voxbridge/voicecore/internal/metrics/prometheus"
	"github.com/voxbridge/voicecore/internal/queue"
	"github.com/voxbridge/voicecore/internal/types"
)

// CallRunner drives one job's call attempt end to end: initiating the
// outbound call via the telephony adapter, binding the Voice Pipeline once
// the media gateway connects, and blocking until a terminal outcome. Its
// concrete implementation composes the telephony and pipeline packages;
// the worker depends only on this narrow contract (§9, dynamic-dispatch
// re-architecture note).
type CallRunner interface {
	RunCall(ctx context.Context, job *types.DialerJob) (types.CallOutcome, error)
}

// JobStore is the persistence collaborator for terminal and retry-scheduled
// job state. Consumed, not implemented, here (§6).
type JobStore interface {
	Save(ctx context.Context, job *types.DialerJob) error
}

// Worker pulls jobs from the queue, runs them to a terminal outcome, and
// applies the retry policy. Many Workers run per process, each handling
// many calls through CallRunner's async model; Worker itself holds no
// per-call state across iterations.
type Worker struct {
	ID        string
	Queue     *queue.Service
	Runner    CallRunner
	Store     JobStore
	Policy    RetryPolicy
	TenantIDs func() []string // returns the current tenant rotation for Dequeue
}

// Run pulls and processes jobs from the queue until ctx is canceled. A
// Dequeue error that is not queue.ErrEmpty is logged and retried after a
// short backoff rather than terminating the worker; QueueBackendUnavailable
// is expected to be handled by the caller's restart/supervision policy.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		job, err := w.Queue.Dequeue(ctx, w.TenantIDs())
		if err != nil {
			if errors.Is(err, queue.ErrEmpty) {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(200 * time.Millisecond):
				}
				continue
			}
			logger.Error("dialer worker dequeue failed", "worker_id", w.ID, "error", err.Error())
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		if err := w.processJob(ctx, job); err != nil {
			logger.Error("dialer worker job failed", "worker_id", w.ID, "job_id", job.JobID, "error", err.Error())
		}
	}
}

// processJob runs one job to a terminal outcome and applies the retry
// decision. Every step is idempotent on job.JobID: re-running processJob
// for the same job (e.g. after a crash mid-retry) only re-derives the same
// decision from the same recorded outcome.
func (w *Worker) processJob(ctx context.Context, job *types.DialerJob) error {
	now := time.Now()
	job.ProcessedAt = &now

	outcome, runErr := w.Runner.RunCall(ctx, job)
	if runErr != nil {
		outcome = types.OutcomeFailed
		job.LastError = runErr.Error()
	}
	job.LastOutcome = &outcome

	decision := w.Policy.Decide(job, outcome)

	if decision.Retry {
		retryJob := job.NextAttempt()
		if err := w.Queue.Schedule(ctx, &retryJob, decision.ExecuteAt); err != nil {
			return fmt.Errorf("schedule retry: %w", err)
		}
		if w.Store != nil {
			if err := w.Store.Save(ctx, &retryJob); err != nil {
				return fmt.Errorf("persist retry job: %w", err)
			}
		}
	} else {
		completed := time.Now()
		job.Status = decision.FinalStatus
		job.CompletedAt = &completed
		if w.Store != nil {
			if err := w.Store.Save(ctx, job); err != nil {
				return fmt.Errorf("persist terminal job: %w", err)
			}
		}
		prometheus.RecordJobCompleted(string(outcome))
	}

	if err := w.Queue.CompleteProcessing(ctx, job); err != nil {
		return fmt.Errorf("complete processing: %w", err)
	}
	return nil
}

// errTimeout is returned by a CallRunner when a call exceeds the maximum
// allowed duration and the worker force-ends it (§5, hard outcome-wait
// upper bound).
var errTimeout = apperrors.NewKind("dialer", "run_call", apperrors.KindMediaTransportClosed, errors.New("call exceeded max duration"))

// MaxCallDuration bounds how long a worker waits for a terminal outcome
// from a single call before forcing a timeout outcome.
const MaxCallDuration = 10 * time.Minute

// WithTimeout wraps a CallRunner so RunCall never blocks past
// MaxCallDuration; on expiry it returns OutcomeTimeout rather than leaving
// the worker loop stuck on one call indefinitely.
func WithTimeout(runner CallRunner, maxDuration time.Duration) CallRunner {
	if maxDuration <= 0 {
		maxDuration = MaxCallDuration
	}
	return &timeoutRunner{inner: runner, max: maxDuration}
}

type timeoutRunner struct {
	inner CallRunner
	max   time.Duration
}

func (r *timeoutRunner) RunCall(ctx context.Context, job *types.DialerJob) (types.CallOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, r.max)
	defer cancel()

	type result struct {
		outcome types.CallOutcome
		err     error
	}
	done := make(chan result, 1)
	go func() {
		outcome, err := r.inner.RunCall(ctx, job)
		done <- result{outcome, err}
	}()

	select {
	case res := <-done:
		return res.outcome, res.err
	case <-ctx.Done():
		return types.OutcomeTimeout, errTimeout
	}
}
