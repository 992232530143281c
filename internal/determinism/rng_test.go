package determinism

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRNG_SameSeedSameSequence(t *testing.T) {
	a := NewRNG(42)
	b := NewRNG(42)

	for i := 0; i < 1000; i++ {
		require.Equal(t, a.NextUint64(), b.NextUint64())
	}
}

func TestRNG_DifferentSeedDiverges(t *testing.T) {
	a := NewRNG(1)
	b := NewRNG(2)

	var diverged bool
	for i := 0; i < 16; i++ {
		if a.NextUint64() != b.NextUint64() {
			diverged = true
			break
		}
	}
	assert.True(t, diverged, "different seeds should diverge within a few draws")
}

func TestRNG_UnseededPanics(t *testing.T) {
	var r RNG
	assert.PanicsWithValue(t, ErrInvariantViolation, func() {
		r.NextUint64()
	})
}

func TestRNG_IntRangeInBounds(t *testing.T) {
	r := NewRNG(7)
	for i := 0; i < 1000; i++ {
		v := r.IntRange(-5, 5)
		assert.GreaterOrEqual(t, v, int64(-5))
		assert.LessOrEqual(t, v, int64(5))
	}
}

func TestRNG_Float64InRange(t *testing.T) {
	r := NewRNG(99)
	for i := 0; i < 1000; i++ {
		v := r.Float64()
		assert.GreaterOrEqual(t, v, 0.0)
		assert.Less(t, v, 1.0)
	}
}

func TestRNG_WeightedChoiceRespectsZeroWeights(t *testing.T) {
	r := NewRNG(3)
	weights := []float64{0, 1, 0}
	for i := 0; i < 100; i++ {
		assert.Equal(t, 1, r.WeightedChoice(weights))
	}
}

func TestRNG_ShuffleIsDeterministicForSameSeed(t *testing.T) {
	permute := func(seed uint64) []int {
		items := []int{0, 1, 2, 3, 4, 5, 6, 7}
		r := NewRNG(seed)
		r.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })
		return items
	}

	assert.Equal(t, permute(123), permute(123))
}
