package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/voxbridge/voicecore/internal/types"
)

// RedisStore is the production SessionManager: authoritative, shared across
// every Voice Pipeline and Dialer Worker process. A session's call key and
// its tenant/active-set memberships are kept in lockstep via pipelining so a
// crashed writer can never leave the active set pointing at a missing key
// for longer than the TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithTTL sets the time-to-live for call session keys. Default 24h, 0
// disables expiry (End is then the only way a session is removed).
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) { s.ttl = ttl }
}

// WithPrefix sets the key prefix for Redis keys. Default "voicecore".
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) { s.prefix = prefix }
}

// NewRedisStore creates a new Redis-backed session store.
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	store := &RedisStore{
		client: client,
		ttl:    defaultTTLHours * time.Hour,
		prefix: "voicecore",
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *RedisStore) Create(ctx context.Context, session *types.CallSession) error {
	if session == nil || session.CallID == "" {
		return ErrInvalidID
	}

	key := s.sessionKey(session.CallID)
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ok, err := s.client.SetNX(ctx, key, data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis setnx failed: %w", err)
	}
	if !ok {
		return ErrAlreadyExists
	}

	return s.indexActive(ctx, session.TenantID, session.CallID)
}

func (s *RedisStore) Get(ctx context.Context, callID string) (*types.CallSession, error) {
	if callID == "" {
		return nil, ErrInvalidID
	}

	data, err := s.client.Get(ctx, s.sessionKey(callID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var session types.CallSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}

func (s *RedisStore) Save(ctx context.Context, session *types.CallSession) error {
	if session == nil || session.CallID == "" {
		return ErrInvalidID
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	key := s.sessionKey(session.CallID)
	ok, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("redis exists failed: %w", err)
	}
	if ok == 0 {
		return ErrNotFound
	}

	return s.client.Set(ctx, key, data, s.ttl).Err()
}

// AppendTurn loads, appends, and saves the session. A dedicated per-turn
// Redis list (mirroring the chat-history idiom) is not used here because
// transcript turns are consumed as a whole per call, never paginated.
func (s *RedisStore) AppendTurn(ctx context.Context, callID string, turn types.TranscriptTurn) error {
	session, err := s.Get(ctx, callID)
	if err != nil {
		return err
	}

	session.TranscriptTurns = append(session.TranscriptTurns, turn)
	session.LastActivity = turn.Timestamp
	if turn.Role == types.RoleUser {
		session.TurnCount++
	}

	return s.Save(ctx, session)
}

func (s *RedisStore) ListActive(ctx context.Context, tenantID string) ([]string, error) {
	if tenantID != "" {
		ids, err := s.client.SMembers(ctx, s.tenantActiveKey(tenantID)).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("redis smembers failed: %w", err)
		}
		return ids, nil
	}

	ids, err := s.client.SMembers(ctx, s.allActiveKey()).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis smembers failed: %w", err)
	}
	return ids, nil
}

func (s *RedisStore) Stats(ctx context.Context) (Stats, error) {
	allIDs, err := s.client.SMembers(ctx, s.allActiveKey()).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Stats{}, fmt.Errorf("redis smembers failed: %w", err)
	}

	stats := Stats{ActiveCount: len(allIDs), ByTenant: make(map[string]int)}

	tenantKeys, err := s.client.Keys(ctx, s.tenantActiveKey("*")).Result()
	if err != nil {
		return Stats{}, fmt.Errorf("redis keys failed: %w", err)
	}

	pipe := s.client.Pipeline()
	cmds := make(map[string]*redis.IntCmd, len(tenantKeys))
	for _, key := range tenantKeys {
		cmds[key] = pipe.SCard(ctx, key)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return Stats{}, fmt.Errorf("redis pipeline failed: %w", err)
	}

	prefix := s.tenantActiveKey("")
	for key, cmd := range cmds {
		tenant := strings.TrimPrefix(key, prefix)
		stats.ByTenant[tenant] = int(cmd.Val())
	}

	return stats, nil
}

func (s *RedisStore) End(ctx context.Context, callID string) error {
	if callID == "" {
		return ErrInvalidID
	}

	session, err := s.Get(ctx, callID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	session.State = types.DialogueEnded
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.sessionKey(callID), data, s.ttl)
	pipe.SRem(ctx, s.allActiveKey(), callID)
	if session.TenantID != "" {
		pipe.SRem(ctx, s.tenantActiveKey(session.TenantID), callID)
	}
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	return nil
}

func (s *RedisStore) indexActive(ctx context.Context, tenantID, callID string) error {
	pipe := s.client.Pipeline()
	pipe.SAdd(ctx, s.allActiveKey(), callID)
	if tenantID != "" {
		key := s.tenantActiveKey(tenantID)
		pipe.SAdd(ctx, key, callID)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
	}
	if s.ttl > 0 {
		pipe.Expire(ctx, s.allActiveKey(), s.ttl)
	}
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	return nil
}

func (s *RedisStore) sessionKey(callID string) string {
	return fmt.Sprintf("%s:session:%s", s.prefix, callID)
}

func (s *RedisStore) allActiveKey() string {
	return fmt.Sprintf("%s:sessions:active", s.prefix)
}

func (s *RedisStore) tenantActiveKey(tenantID string) string {
	return fmt.Sprintf("%s:sessions:tenant:%s:active", s.prefix, tenantID)
}
