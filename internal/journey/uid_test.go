package journey

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUIDSourceFixedAlwaysReturnsSameValue(t *testing.T) {
	t.Parallel()
	s := NewUIDSource("fixed", "vansh", "", 0)
	for i := 0; i < 5; i++ {
		assert.Equal(t, "vansh", s.Next())
	}
}

func TestUIDSourceRandomProducesDistinctValues(t *testing.T) {
	t.Parallel()
	s := NewUIDSource("random", "", "", 0)
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		seen[s.Next()] = true
	}
	assert.Greater(t, len(seen), 1)
}

func TestUIDSourcePoolDrawsFromFixedSet(t *testing.T) {
	t.Parallel()
	s := NewUIDSource("pool", "", "", 5)
	pool := make(map[string]bool)
	for i := 0; i < 50; i++ {
		pool[s.Next()] = true
	}
	assert.LessOrEqual(t, len(pool), 5)
}
