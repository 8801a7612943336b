package statestore

// Sort field constants for ListOptions.SortBy.
const (
	SortByCreatedAt = "created_at"
	SortByUpdatedAt = "updated_at"
)

// defaultTTLHours is the default TTL for call sessions held in Redis (24 hours).
// Sessions are expected to be removed explicitly via End; the TTL is a backstop
// against leaked entries from crashed workers.
const defaultTTLHours = 24

// Stats summarizes the live sessions tracked by a SessionManager, broken down
// per tenant for fairness/quota observability.
type Stats struct {
	ActiveCount int            `json:"active_count"`
	ByTenant    map[string]int `json:"by_tenant"`
}
