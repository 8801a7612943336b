// Package statestore provides the shared, process-wide registry of live call
// sessions (the Session Manager). The store is authoritative for whether a
// call session exists; any in-process cache is a lookup-only convenience.
package statestore

import (
	"context"
	"errors"

	"github.com/voxbridge/voicecore/internal/types"
)

// SessionManager is the shared backing store for live CallSessions. The
// Voice Pipeline exclusively owns the CallSession value and its adapters;
// a SessionManager only persists enough state for lookup, fairness
// accounting, and crash recovery.
type SessionManager interface {
	// Create registers a new call session. Returns ErrAlreadyExists if the
	// call ID is already tracked.
	Create(ctx context.Context, session *types.CallSession) error

	// Get retrieves a call session by ID. Returns ErrNotFound if it isn't
	// tracked (either never created, or already ended).
	Get(ctx context.Context, callID string) (*types.CallSession, error)

	// Save persists the current state of an already-created session
	// (dialogue state, transcript turns, activity timestamp).
	Save(ctx context.Context, session *types.CallSession) error

	// AppendTurn records one transcript turn without requiring a full
	// load+mutate+save round trip.
	AppendTurn(ctx context.Context, callID string, turn types.TranscriptTurn) error

	// ListActive returns the call IDs of all sessions that have not ended.
	// If tenantID is non-empty, results are restricted to that tenant.
	ListActive(ctx context.Context, tenantID string) ([]string, error)

	// Stats reports the current active session count, overall and per tenant.
	Stats(ctx context.Context) (Stats, error)

	// End marks a session ended and removes it from the active indices.
	// Idempotent: ending an already-ended or unknown session is not an error.
	End(ctx context.Context, callID string) error
}

// ErrNotFound is returned when a call session isn't tracked by the store.
var ErrNotFound = errors.New("call session not found")

// ErrInvalidID is returned when an empty call ID is supplied.
var ErrInvalidID = errors.New("invalid call ID")

// ErrAlreadyExists is returned by Create when the call ID is already tracked.
var ErrAlreadyExists = errors.New("call session already exists")
