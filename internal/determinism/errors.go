package determinism

import "errors"

// ErrInvariantViolation marks a bug in this core rather than a recoverable
// runtime condition. This package panics with it on a draw from an
// unseeded RNG, an IntRange with b < a, a WeightedChoice whose weights
// do not sum to a positive total, and a non-positive tick rate given to
// NewIntegrator. Callers are expected to fail fast rather than attempt
// recovery (spec §7).
var ErrInvariantViolation = errors.New("determinism: invariant violation")
