package determinism

// RNG is a seeded, deterministic pseudo-random generator. Two RNG
// instances constructed with the same seed produce identical output
// sequences regardless of host platform: the generator is xoshiro256**,
// seeded by expanding the 64-bit seed through splitmix64, and every
// operation here is integer arithmetic with no platform-dependent
// rounding. An RNG must be constructed with NewRNG; the zero value is
// unseeded and every draw from it panics with ErrInvariantViolation.
type RNG struct {
	state  [4]uint64
	seeded bool
}

// NewRNG constructs a seeded RNG. Equal seeds yield equal sequences.
func NewRNG(seed uint64) *RNG {
	r := &RNG{seeded: true}
	sm := seed
	for i := range r.state {
		sm += 0x9E3779B97F4A7C15
		z := sm
		z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
		z = (z ^ (z >> 27)) * 0x94D049BB133111EB
		z = z ^ (z >> 31)
		r.state[i] = z
	}
	return r
}

func rotl(x uint64, k uint) uint64 {
	return (x << k) | (x >> (64 - k))
}

// NextUint64 draws the next 64-bit word from the generator.
func (r *RNG) NextUint64() uint64 {
	if !r.seeded {
		panic(ErrInvariantViolation)
	}

	s := &r.state
	result := rotl(s[1]*5, 7) * 9

	t := s[1] << 17

	s[2] ^= s[0]
	s[3] ^= s[1]
	s[1] ^= s[2]
	s[0] ^= s[3]

	s[2] ^= t

	s[3] = rotl(s[3], 45)

	return result
}

// IntRange returns a uniform integer in [a, b], inclusive on both ends.
func (r *RNG) IntRange(a, b int64) int64 {
	if b < a {
		panic(ErrInvariantViolation)
	}
	span := uint64(b-a) + 1
	if span == 0 {
		// b-a spans the full uint64 range; any draw is in range.
		return a + int64(r.NextUint64())
	}
	return a + int64(r.NextUint64()%span)
}

// Float64 returns a uniform real in [0, 1), using the top 53 bits of the
// draw, so every result is a multiple of 2^-53.
func (r *RNG) Float64() float64 {
	return float64(r.NextUint64()>>11) / (1 << 53)
}

// WeightedChoice picks an index into weights with probability
// proportional to weight. Weights must be non-negative and sum to a
// positive total.
func (r *RNG) WeightedChoice(weights []float64) int {
	var total float64
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		panic(ErrInvariantViolation)
	}
	target := r.Float64() * total
	var cumulative float64
	for i, w := range weights {
		cumulative += w
		if target < cumulative {
			return i
		}
	}
	return len(weights) - 1
}

// Shuffle permutes items in place using the Fisher-Yates algorithm
// driven by this generator.
func (r *RNG) Shuffle(n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j := r.IntRange(0, int64(i))
		swap(i, int(j))
	}
}
