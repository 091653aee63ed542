package thermal

// Ambient temperature limits in degrees Celsius.
const (
	MinAmbient = -40.0
	MaxAmbient = 150.0
)

// Defaults restored by a full reset.
const (
	DefaultAmbient      = 25.0
	DefaultResponseTime = 5.0 // seconds
	DefaultNoiseLevel   = 0.05
)

// Parameters are the externally controlled inputs to the simulation. All
// four are independently settable and take effect on the next tick.
type Parameters struct {
	AmbientTemperature   float64 // °C, the true value being sensed
	ResponseTimeConstant float64 // seconds, > 0
	NoiseLevel           float64 // °C, amplitude of symmetric uniform noise
	CalibrationOffset    float64 // °C, additive
}

// DefaultParameters returns the parameter set used at start-up and after a
// reset.
func DefaultParameters() Parameters {
	return Parameters{
		AmbientTemperature:   DefaultAmbient,
		ResponseTimeConstant: DefaultResponseTime,
		NoiseLevel:           DefaultNoiseLevel,
		CalibrationOffset:    0,
	}
}

// ClampAmbient limits v to [MinAmbient, MaxAmbient]. NaN is returned as is.
func ClampAmbient(v float64) float64 {
	if v < MinAmbient {
		return MinAmbient
	}
	if v > MaxAmbient {
		return MaxAmbient
	}
	return v
}
