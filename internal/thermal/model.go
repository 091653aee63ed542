package thermal

import (
	"time"

	"github.com/banshee-data/sensor.sim/internal/timeutil"
)

// DriftPerHour is the instrument-aging drift rate in °C per elapsed hour.
const DriftPerHour = 0.001

// SensorState is the physical state of the sensor body.
type SensorState struct {
	SensorTemperature float64   // °C, persists across ticks
	StartTime         time.Time // drift reference instant
	DriftOffset       float64   // °C, DriftPerHour * hours since StartTime
}

// Model is the thermal response model. It owns the SensorState and mutates
// it once per Advance.
type Model struct {
	clock timeutil.Clock
	state SensorState
}

// NewModel creates a model with the sensor body at initialTemperature and the
// drift reference set to the clock's current time.
func NewModel(clock timeutil.Clock, initialTemperature float64) *Model {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Model{
		clock: clock,
		state: SensorState{
			SensorTemperature: initialTemperature,
			StartTime:         clock.Now(),
		},
	}
}

// Alpha returns the smoothing factor dt/(tau+dt) of the discretised
// first-order lag. For dt > 0 and tau > 0 it lies strictly in (0, 1).
func Alpha(dt, tau float64) float64 {
	return dt / (tau + dt)
}

// Step applies one lag step to temperature and returns the new value.
func Step(temperature, ambient, dt, tau float64) float64 {
	return temperature + Alpha(dt, tau)*(ambient-temperature)
}

// Drift returns DriftPerHour * elapsed hours. Negative elapsed time (a clock
// moved backwards) yields zero drift.
func Drift(elapsed time.Duration) float64 {
	if elapsed < 0 {
		return 0
	}
	return DriftPerHour * elapsed.Hours()
}

// Advance moves the sensor body dt seconds toward the ambient temperature and
// refreshes the drift offset from wall-clock time. It returns the new sensor
// temperature.
func (m *Model) Advance(dt float64, params Parameters) float64 {
	m.state.SensorTemperature = Step(m.state.SensorTemperature, params.AmbientTemperature, dt, params.ResponseTimeConstant)
	m.state.DriftOffset = m.CurrentDrift()
	return m.state.SensorTemperature
}

// CurrentDrift computes the drift at the clock's current time without
// mutating state.
func (m *Model) CurrentDrift() float64 {
	return Drift(m.clock.Since(m.state.StartTime))
}

// State returns a copy of the sensor state.
func (m *Model) State() SensorState {
	return m.state
}

// Reset puts the sensor body at temperature, zeroes drift and restarts the
// drift reference at the current time.
func (m *Model) Reset(temperature float64) {
	m.state = SensorState{
		SensorTemperature: temperature,
		StartTime:         m.clock.Now(),
	}
}
