package dialer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/voxbridge/voicecore/internal/queue"
	"github.com/voxbridge/voicecore/internal/types"
)

type scriptedRunner struct {
	mu       sync.Mutex
	outcomes map[string]types.CallOutcome
	calls    []string
}

func (r *scriptedRunner) RunCall(_ context.Context, job *types.DialerJob) (types.CallOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, job.JobID)
	return r.outcomes[job.JobID], nil
}

type memStore struct {
	mu    sync.Mutex
	saved []*types.DialerJob
}

func (s *memStore) Save(_ context.Context, job *types.DialerJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	s.saved = append(s.saved, &cp)
	return nil
}

func setupWorker(t *testing.T, runner CallRunner, store JobStore) (*Worker, *queue.Service) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	q := queue.New(client)

	w := &Worker{
		ID:        "w1",
		Queue:     q,
		Runner:    runner,
		Store:     store,
		TenantIDs: func() []string { return []string{"tenant-a"} },
	}
	return w, q
}

func TestWorker_RetryOnBusy(t *testing.T) {
	runner := &scriptedRunner{outcomes: map[string]types.CallOutcome{"j1": types.OutcomeBusy}}
	store := &memStore{}
	w, q := setupWorker(t, runner, store)

	job := &types.DialerJob{JobID: "j1", TenantID: "tenant-a", Priority: 5, AttemptNumber: 1, Status: types.JobStatusPending}
	if err := q.Enqueue(context.Background(), job); err != nil {
		t.Fatal(err)
	}

	dequeued, err := q.Dequeue(context.Background(), []string{"tenant-a"})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.processJob(context.Background(), dequeued); err != nil {
		t.Fatalf("processJob() error = %v", err)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.saved) != 1 {
		t.Fatalf("saved = %d, want 1", len(store.saved))
	}
	if store.saved[0].Status != types.JobStatusRetryScheduled {
		t.Errorf("saved status = %s, want retry_scheduled", store.saved[0].Status)
	}
	if store.saved[0].AttemptNumber != 2 {
		t.Errorf("saved attempt = %d, want 2", store.saved[0].AttemptNumber)
	}
}

func TestWorker_TerminalSuccess(t *testing.T) {
	runner := &scriptedRunner{outcomes: map[string]types.CallOutcome{"j1": types.OutcomeGoalAchieved}}
	store := &memStore{}
	w, q := setupWorker(t, runner, store)

	job := &types.DialerJob{JobID: "j1", TenantID: "tenant-a", Priority: 5, AttemptNumber: 1, Status: types.JobStatusPending}
	if err := q.Enqueue(context.Background(), job); err != nil {
		t.Fatal(err)
	}
	dequeued, err := q.Dequeue(context.Background(), []string{"tenant-a"})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.processJob(context.Background(), dequeued); err != nil {
		t.Fatalf("processJob() error = %v", err)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if store.saved[0].Status != types.JobStatusCompleted {
		t.Errorf("saved status = %s, want completed", store.saved[0].Status)
	}
}

func TestWithTimeout_ForcesTimeoutOutcome(t *testing.T) {
	blocking := callRunnerFunc(func(ctx context.Context, job *types.DialerJob) (types.CallOutcome, error) {
		<-ctx.Done()
		return types.OutcomeAnswered, nil
	})
	runner := WithTimeout(blocking, 20*time.Millisecond)

	outcome, err := runner.RunCall(context.Background(), &types.DialerJob{JobID: "slow"})
	if outcome != types.OutcomeTimeout {
		t.Errorf("outcome = %s, want timeout", outcome)
	}
	if err == nil {
		t.Error("err = nil, want timeout error")
	}
}

type callRunnerFunc func(ctx context.Context, job *types.DialerJob) (types.CallOutcome, error)

func (f callRunnerFunc) RunCall(ctx context.Context, job *types.DialerJob) (types.CallOutcome, error) {
	return f(ctx, job)
}
