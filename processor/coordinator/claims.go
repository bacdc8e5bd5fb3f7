package coordinator

import (
	"sync"
	"time"
)

// Claim reasons. A request is resolved by exactly one of the two inbound
// streams.
const (
	ReasonTool = "tool"
	ReasonPlan = "plan"
)

type claimEntry struct {
	reason    string
	claimedAt time.Time
}

// ClaimTable enforces first-writer-wins resolution per request id. Claims
// expire after a TTL to bound memory; expiry never retracts an already
// published result, it only allows the id to be reused.
//
// Message handling may run from multiple consumer goroutines, so claim
// insertion is mutex-guarded to keep the at-most-once invariant.
type ClaimTable struct {
	mu     sync.Mutex
	ttl    time.Duration
	claims map[string]claimEntry
}

// NewClaimTable creates a claim table with the given TTL.
func NewClaimTable(ttl time.Duration) *ClaimTable {
	return &ClaimTable{
		ttl:    ttl,
		claims: make(map[string]claimEntry),
	}
}

// Claim attempts to insert a claim for requestID. It returns true only when
// no live claim existed, i.e. the caller won the race and owns resolution.
func (t *ClaimTable) Claim(requestID, reason string) bool {
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	if entry, ok := t.claims[requestID]; ok && now.Sub(entry.claimedAt) < t.ttl {
		return false
	}
	t.claims[requestID] = claimEntry{reason: reason, claimedAt: now}
	return true
}

// Reason returns the claim reason for requestID, if a live claim exists.
func (t *ClaimTable) Reason(requestID string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.claims[requestID]
	if !ok || time.Since(entry.claimedAt) >= t.ttl {
		return "", false
	}
	return entry.reason, true
}

// Len returns the number of stored claims, expired ones included.
func (t *ClaimTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.claims)
}

// Sweep removes expired claims and returns how many were dropped.
func (t *ClaimTable) Sweep() int {
	cutoff := time.Now().Add(-t.ttl)

	t.mu.Lock()
	defer t.mu.Unlock()

	dropped := 0
	for id, entry := range t.claims {
		if entry.claimedAt.Before(cutoff) {
			delete(t.claims, id)
			dropped++
		}
	}
	return dropped
}
