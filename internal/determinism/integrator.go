package determinism

// Integrator advances positions by one fixed DELTA = 1/TICK_HZ per
// call, the only form of position update the simulation step is
// permitted to use (spec §4.1, §4.7): p <- p + v*DELTA, no variable-dt
// paths.
type Integrator struct {
	Delta float64
}

// NewIntegrator builds an Integrator for the given logical tick rate.
func NewIntegrator(tickHz int) *Integrator {
	if tickHz <= 0 {
		panic(ErrInvariantViolation)
	}
	return &Integrator{Delta: 1.0 / float64(tickHz)}
}

// Step advances position p by velocity v over one fixed DELTA.
func (i *Integrator) Step(p, v Vec2) Vec2 {
	return p.Add(v.Scale(i.Delta))
}
