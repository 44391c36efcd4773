package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequentialIDGenerator_Sequence(t *testing.T) {
	gen := NewSequentialIDGenerator("run")
	assert.Equal(t, "run-1", gen.Generate())
	assert.Equal(t, "run-2", gen.Generate())
}

func TestSequentialIDGenerator_EmptyPrefixDefault(t *testing.T) {
	gen := NewSequentialIDGenerator("")
	assert.Equal(t, "analysis-1", gen.Generate())
}

func TestSequentialIDGenerator_ThreadSafe(t *testing.T) {
	gen := NewSequentialIDGenerator("x")
	var wg sync.WaitGroup
	seen := sync.Map{}
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seen.Store(gen.Generate(), true)
		}()
	}
	wg.Wait()

	count := 0
	seen.Range(func(_, _ any) bool {
		count++
		return true
	})
	assert.Equal(t, 50, count, "every call must return a distinct ID")
}
