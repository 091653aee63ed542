package thermal

// Sampler produces measured temperatures from the model state. Telemetry
// ticks and session samples both go through Measure, and every call draws
// fresh noise.
type Sampler struct {
	model *Model
	noise *NoiseInjector
}

// NewSampler binds a sampler to a model and a noise source.
func NewSampler(model *Model, noise *NoiseInjector) *Sampler {
	return &Sampler{model: model, noise: noise}
}

// Measure returns sensorTemperature + drift + noise + calibrationOffset.
// Drift is evaluated at the current clock instant.
func (s *Sampler) Measure(params Parameters) float64 {
	return Measurement(s.model.State().SensorTemperature, s.model.CurrentDrift(), s.noise.Sample(params.NoiseLevel), params.CalibrationOffset)
}

// Measurement is the measurement formula.
func Measurement(sensorTemperature, drift, noise, calibration float64) float64 {
	return sensorTemperature + drift + noise + calibration
}
