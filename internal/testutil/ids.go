package testutil

import (
	"fmt"
	"sync"
)

// SequenceIDs generates predictable document ids: "<prefix>-0001",
// "<prefix>-0002", ...
//
// This enables deterministic store dumps and golden file comparison.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequenceIDs struct {
	mu     sync.Mutex
	prefix string
	next   int
}

// NewSequenceIDs creates a generator. An empty prefix defaults to "doc".
func NewSequenceIDs(prefix string) *SequenceIDs {
	if prefix == "" {
		prefix = "doc"
	}
	return &SequenceIDs{prefix: prefix}
}

// Generate returns the next id. Implements store.IDGenerator.
func (g *SequenceIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return fmt.Sprintf("%s-%04d", g.prefix, g.next)
}
