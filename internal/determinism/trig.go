package determinism

import "math"

// sincos centralizes the one place this package calls into math's
// transcendental functions, so Rotate's exact operation order stays
// pinned to a single call site.
func sincos(angle float64) (sin, cos float64) {
	return math.Sincos(angle)
}
