package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDGenerator generates predictable analysis IDs.
//
// This enables deterministic test execution and golden snapshot comparison:
// the same batch processed with a fresh SequentialIDGenerator stores
// byte-identical rows.
//
// Thread-safety: SequentialIDGenerator is safe for concurrent use via internal mutex.
type SequentialIDGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDGenerator creates a generator producing prefix-1, prefix-2, ...
//
// If prefix is empty, "analysis" is used.
func NewSequentialIDGenerator(prefix string) *SequentialIDGenerator {
	if prefix == "" {
		prefix = "analysis"
	}
	return &SequentialIDGenerator{prefix: prefix}
}

// Generate returns the next ID.
//
// Implements engine.IDGenerator interface.
func (g *SequentialIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
