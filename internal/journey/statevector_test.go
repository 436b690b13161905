package journey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertShapeInvariant(t *testing.T, v StateVector, length int) {
	t.Helper()
	require.Len(t, v.Primary, length)
	require.Len(t, v.Secondary, length)
	for i := 0; i < length; i++ {
		sec := v.Secondary[i]
		pri := v.Primary[i]
		require.Contains(t, "01", string(sec))
		if sec == '0' {
			assert.Equal(t, byte('#'), pri)
		} else {
			assert.True(t, pri >= 'a' && pri <= 'z', "expected lowercase letter, got %q", pri)
		}
	}
}

func TestNewStateVectorSatisfiesShapeInvariant(t *testing.T) {
	t.Parallel()
	v := NewStateVector(185)
	assertShapeInvariant(t, v, 185)
}

func TestMutateAlwaysSatisfiesShapeInvariant(t *testing.T) {
	t.Parallel()
	v := NewStateVector(10)
	for i := 0; i < 1000; i++ {
		v = v.Mutate()
		assertShapeInvariant(t, v, 10)
	}
}

func TestCompleteFillsEveryPosition(t *testing.T) {
	t.Parallel()
	v := NewStateVector(10).Complete()
	assertShapeInvariant(t, v, 10)
	for i := 0; i < 10; i++ {
		assert.Equal(t, byte('1'), v.Secondary[i])
	}
}

func TestMutateChangesKPositions(t *testing.T) {
	t.Parallel()
	v := NewStateVector(20)
	mutated := v.Mutate()

	diff := 0
	for i := range v.Secondary {
		if v.Secondary[i] != mutated.Secondary[i] {
			diff++
		}
	}
	assert.GreaterOrEqual(t, diff, 1)
	assert.LessOrEqual(t, diff, 5)
}
