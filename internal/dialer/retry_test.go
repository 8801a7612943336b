package dialer

import (
	"testing"
	"time"

	"github.com/voxbridge/voicecore/internal/types"
)

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestRetryPolicy_RetryOnBusy(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := &RetryPolicy{Now: fixedNow(base)}
	job := &types.DialerJob{AttemptNumber: 1}

	d := p.Decide(job, types.OutcomeBusy)
	if !d.Retry {
		t.Fatal("Decide() Retry = false, want true")
	}
	if d.NextAttempt != 2 {
		t.Errorf("NextAttempt = %d, want 2", d.NextAttempt)
	}
	if !d.ExecuteAt.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("ExecuteAt = %v, want %v", d.ExecuteAt, base.Add(2*time.Hour))
	}
}

func TestRetryPolicy_NonRetryableSpam(t *testing.T) {
	p := &RetryPolicy{}
	job := &types.DialerJob{AttemptNumber: 1}

	d := p.Decide(job, types.OutcomeSpam)
	if d.Retry {
		t.Fatal("Decide() Retry = true, want false")
	}
	if d.FinalStatus != types.JobStatusNonRetryable {
		t.Errorf("FinalStatus = %s, want non_retryable", d.FinalStatus)
	}
}

func TestRetryPolicy_MaxAttempts(t *testing.T) {
	p := &RetryPolicy{}
	job := &types.DialerJob{AttemptNumber: 3}

	d := p.Decide(job, types.OutcomeNoAnswer)
	if d.Retry {
		t.Fatal("Decide() Retry = true, want false at max attempts")
	}
	if d.FinalStatus != types.JobStatusFailed {
		t.Errorf("FinalStatus = %s, want failed", d.FinalStatus)
	}
}

func TestRetryPolicy_Success(t *testing.T) {
	p := &RetryPolicy{}
	job := &types.DialerJob{AttemptNumber: 1}

	d := p.Decide(job, types.OutcomeGoalAchieved)
	if d.Retry {
		t.Fatal("Decide() Retry = true, want false")
	}
	if d.FinalStatus != types.JobStatusCompleted {
		t.Errorf("FinalStatus = %s, want completed", d.FinalStatus)
	}
}

func TestRetryPolicy_CustomDelay(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := &RetryPolicy{Now: fixedNow(base), Delay: 10 * time.Minute}
	job := &types.DialerJob{AttemptNumber: 1}

	d := p.Decide(job, types.OutcomeTimeout)
	if !d.ExecuteAt.Equal(base.Add(10 * time.Minute)) {
		t.Errorf("ExecuteAt = %v, want base+10m", d.ExecuteAt)
	}
}
