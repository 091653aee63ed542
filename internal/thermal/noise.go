package thermal

import "math/rand/v2"

// NoiseInjector draws symmetric uniform noise. Each Sample consumes one draw
// from its random source.
type NoiseInjector struct {
	rng *rand.Rand
}

// NewNoiseInjector returns an injector. A zero seed uses the process-wide
// random source; any other seed gives a reproducible sequence.
func NewNoiseInjector(seed uint64) *NoiseInjector {
	if seed == 0 {
		return &NoiseInjector{}
	}
	return &NoiseInjector{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Sample returns a value drawn uniformly from [-level, +level).
// A level of zero always yields zero.
func (n *NoiseInjector) Sample(level float64) float64 {
	var u float64
	if n == nil || n.rng == nil {
		u = rand.Float64()
	} else {
		u = n.rng.Float64()
	}
	if level == 0 {
		return 0
	}
	return (u - 0.5) * 2 * level
}
