// Package queue implements the dialer's Redis-backed job queues: a
// priority list, one FIFO list per tenant, a scheduled-retry sorted set,
// and a processing set, matching the key layout in §4.6.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/voxbridge/voicecore/internal/metrics/prometheus"
	"github.com/voxbridge/voicecore/internal/types"
)

// ErrEmpty is returned by Dequeue when no job is available across the
// priority queue or any of the caller-supplied tenant queues.
var ErrEmpty = errors.New("queue: empty")

const (
	keyPriorityQueue = "dialer:priority:queue"
	keyTenantQueue   = "dialer:tenant:%s:queue"
	keyScheduled     = "dialer:scheduled"
	keyProcessing    = "dialer:processing"
	keyStats         = "dialer:stats"
)

// stat hash field names.
const (
	statEnqueued  = "enqueued_total"
	statDequeued  = "dequeued_total"
	statScheduled = "scheduled_total"
	statPromoted  = "promoted_total"
)

// Service is the Redis-backed Queue Service described in §4.6.
type Service struct {
	client *redis.Client
}

// New wraps an established Redis client.
func New(client *redis.Client) *Service {
	return &Service{client: client}
}

func tenantQueueKey(tenantID string) string {
	return fmt.Sprintf(keyTenantQueue, tenantID)
}

// Enqueue routes job per the priority split: priority >= HighPriorityThreshold
// pushes to the head of the shared priority queue (LIFO among high-priority
// jobs, so a freshly escalated job jumps the line); otherwise it appends to
// the tail of the job's tenant queue (FIFO).
func (s *Service) Enqueue(ctx context.Context, job *types.DialerJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue: marshal job: %w", err)
	}

	route := "tenant"
	pipe := s.client.TxPipeline()
	if job.IsHighPriority() {
		route = "priority"
		pipe.LPush(ctx, keyPriorityQueue, data)
	} else {
		pipe.RPush(ctx, tenantQueueKey(job.TenantID), data)
	}
	pipe.HIncrBy(ctx, keyStats, statEnqueued, 1)
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("queue: enqueue: %w", err)
	}
	prometheus.RecordJobEnqueued(route)
	return nil
}

// Dequeue pops the priority queue first; if empty, it iterates
// tenantIDs in the order given (the caller rotates that list to achieve
// round-robin fairness across tenants) and pops the first non-empty one.
// The popped job is atomically moved into the processing set.
func (s *Service) Dequeue(ctx context.Context, tenantIDs []string) (*types.DialerJob, error) {
	if data, err := s.client.LPop(ctx, keyPriorityQueue).Result(); err == nil {
		return s.finishDequeue(ctx, data)
	} else if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("queue: dequeue priority: %w", err)
	}

	for _, tenantID := range tenantIDs {
		data, err := s.client.LPop(ctx, tenantQueueKey(tenantID)).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, fmt.Errorf("queue: dequeue tenant %s: %w", tenantID, err)
		}
		return s.finishDequeue(ctx, data)
	}

	return nil, ErrEmpty
}

func (s *Service) finishDequeue(ctx context.Context, data string) (*types.DialerJob, error) {
	var job types.DialerJob
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, fmt.Errorf("queue: unmarshal job: %w", err)
	}
	job.Status = types.JobStatusProcessing

	pipe := s.client.TxPipeline()
	updated, err := json.Marshal(&job)
	if err != nil {
		return nil, fmt.Errorf("queue: marshal job: %w", err)
	}
	// keyProcessing is a hash keyed by job_id, not a set of JSON blobs: the
	// worker mutates the job (ProcessedAt, LastOutcome, Status, ...) before
	// CompleteProcessing, so a member keyed by the mutable JSON would never
	// match what was inserted here.
	pipe.HSet(ctx, keyProcessing, job.JobID, updated)
	pipe.HIncrBy(ctx, keyStats, statDequeued, 1)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("queue: move to processing: %w", err)
	}
	return &job, nil
}

// CompleteProcessing removes job from the processing set; it is called
// once the Dialer Worker has a terminal outcome recorded, whether the job
// is now retiring to the scheduled set or is terminal.
func (s *Service) CompleteProcessing(ctx context.Context, job *types.DialerJob) error {
	if err := s.client.HDel(ctx, keyProcessing, job.JobID).Err(); err != nil {
		return fmt.Errorf("queue: remove from processing: %w", err)
	}
	return nil
}

// Schedule places job into the scheduled sorted set, keyed by executeAt
// (a Unix timestamp), for promotion back to a queue once due.
func (s *Service) Schedule(ctx context.Context, job *types.DialerJob, executeAt time.Time) error {
	job.Status = types.JobStatusRetryScheduled
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue: marshal job: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, keyScheduled, redis.Z{Score: float64(executeAt.Unix()), Member: data})
	pipe.HIncrBy(ctx, keyStats, statScheduled, 1)
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("queue: schedule: %w", err)
	}
	prometheus.RecordRetryScheduled()
	return nil
}

// PromoteDue atomically removes every scheduled entry whose score is <= now
// and re-enqueues each with status reset to pending. It is safe to call
// concurrently from multiple promoter goroutines/processes: ZRangeByScore
// then ZRem races are resolved by only re-enqueueing members ZRem actually
// removed, so two racing promoters never double-enqueue the same job.
func (s *Service) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	members, err := s.client.ZRangeByScore(ctx, keyScheduled, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", now.Unix()),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("queue: range scheduled: %w", err)
	}

	promoted := 0
	for _, member := range members {
		removed, err := s.client.ZRem(ctx, keyScheduled, member).Result()
		if err != nil {
			return promoted, fmt.Errorf("queue: rem scheduled: %w", err)
		}
		if removed == 0 {
			// another promoter already claimed this member.
			continue
		}

		var job types.DialerJob
		if err := json.Unmarshal([]byte(member), &job); err != nil {
			return promoted, fmt.Errorf("queue: unmarshal scheduled job: %w", err)
		}
		job.Status = types.JobStatusPending

		if err := s.Enqueue(ctx, &job); err != nil {
			return promoted, fmt.Errorf("queue: re-enqueue %s: %w", job.JobID, err)
		}
		if err := s.client.HIncrBy(ctx, keyStats, statPromoted, 1).Err(); err != nil {
			return promoted, fmt.Errorf("queue: stats: %w", err)
		}
		promoted++
	}
	return promoted, nil
}

// Stats returns the raw dialer:stats counters.
func (s *Service) Stats(ctx context.Context) (map[string]int64, error) {
	raw, err := s.client.HGetAll(ctx, keyStats).Result()
	if err != nil {
		return nil, fmt.Errorf("queue: stats: %w", err)
	}
	out := make(map[string]int64, len(raw))
	for k, v := range raw {
		var n int64
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			out[k] = n
		}
	}
	return out, nil
}
