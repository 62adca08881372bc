package testutil

import (
	"fmt"
	"sync"
)

// FixedRunIDs returns predetermined run identifiers.
//
// This enables deterministic journal contents and golden comparison. When
// the list is exhausted, ids continue as "test-run-<n>".
//
// Thread-safety: FixedRunIDs is safe for concurrent use via internal mutex.
type FixedRunIDs struct {
	mu  sync.Mutex
	ids []string
	n   int
}

// NewFixedRunIDs creates a generator returning ids in order.
func NewFixedRunIDs(ids ...string) *FixedRunIDs {
	return &FixedRunIDs{ids: ids}
}

// Generate returns the next run id.
func (g *FixedRunIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	if g.n <= len(g.ids) {
		return g.ids[g.n-1]
	}
	return fmt.Sprintf("test-run-%d", g.n)
}
