package statestore

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/voxbridge/voicecore/internal/types"
)

// MemoryStore is an in-memory SessionManager. It is thread-safe and suitable
// for development and single-instance deployments; RedisStore is required
// once more than one Dialer Worker or Voice Pipeline host is running, since
// the store must be authoritative for session existence across processes.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*types.CallSession

	// tenantIndex tracks active call IDs per tenant for ListActive/Stats.
	tenantIndex map[string]map[string]struct{}
}

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:    make(map[string]*types.CallSession),
		tenantIndex: make(map[string]map[string]struct{}),
	}
}

func (s *MemoryStore) Create(ctx context.Context, session *types.CallSession) error {
	if session == nil || session.CallID == "" {
		return ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.CallID]; exists {
		return ErrAlreadyExists
	}

	s.sessions[session.CallID] = deepCopySession(session)
	s.indexActive(session.TenantID, session.CallID)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, callID string) (*types.CallSession, error) {
	if callID == "" {
		return nil, ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.sessions[callID]
	if !exists {
		return nil, ErrNotFound
	}
	return deepCopySession(session), nil
}

func (s *MemoryStore) Save(ctx context.Context, session *types.CallSession) error {
	if session == nil || session.CallID == "" {
		return ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.CallID]; !exists {
		return ErrNotFound
	}

	s.sessions[session.CallID] = deepCopySession(session)
	return nil
}

func (s *MemoryStore) AppendTurn(ctx context.Context, callID string, turn types.TranscriptTurn) error {
	if callID == "" {
		return ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[callID]
	if !exists {
		return ErrNotFound
	}

	session.TranscriptTurns = append(session.TranscriptTurns, turn)
	session.LastActivity = turn.Timestamp
	if turn.Role == types.RoleUser {
		session.TurnCount++
	}
	return nil
}

func (s *MemoryStore) ListActive(ctx context.Context, tenantID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if tenantID != "" {
		calls, ok := s.tenantIndex[tenantID]
		if !ok {
			return []string{}, nil
		}
		ids := make([]string, 0, len(calls))
		for id := range calls {
			ids = append(ids, id)
		}
		return ids, nil
	}

	ids := make([]string, 0, len(s.sessions))
	for id, session := range s.sessions {
		if session.State != types.DialogueEnded {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{ByTenant: make(map[string]int)}
	for tenant, calls := range s.tenantIndex {
		stats.ByTenant[tenant] = len(calls)
		stats.ActiveCount += len(calls)
	}
	return stats, nil
}

func (s *MemoryStore) End(ctx context.Context, callID string) error {
	if callID == "" {
		return ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[callID]
	if !exists {
		return nil
	}

	session.State = types.DialogueEnded
	s.deindexActive(session.TenantID, callID)
	return nil
}

// indexActive must be called with the write lock held.
func (s *MemoryStore) indexActive(tenantID, callID string) {
	if tenantID == "" {
		return
	}
	calls, ok := s.tenantIndex[tenantID]
	if !ok {
		calls = make(map[string]struct{})
		s.tenantIndex[tenantID] = calls
	}
	calls[callID] = struct{}{}
}

// deindexActive must be called with the write lock held.
func (s *MemoryStore) deindexActive(tenantID, callID string) {
	calls, ok := s.tenantIndex[tenantID]
	if !ok {
		return
	}
	delete(calls, callID)
	if len(calls) == 0 {
		delete(s.tenantIndex, tenantID)
	}
}

// deepCopySession copies a CallSession via JSON round-trip so stored and
// returned values never alias caller-owned memory.
func deepCopySession(session *types.CallSession) *types.CallSession {
	if session == nil {
		return nil
	}
	data, err := json.Marshal(session)
	if err != nil {
		return nil
	}
	var cp types.CallSession
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil
	}
	return &cp
}
