package engine

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/sensor.sim/internal/config"
	"github.com/banshee-data/sensor.sim/internal/export"
	"github.com/banshee-data/sensor.sim/internal/kalman"
	"github.com/banshee-data/sensor.sim/internal/monitoring"
	"github.com/banshee-data/sensor.sim/internal/session"
	"github.com/banshee-data/sensor.sim/internal/telemetry"
	"github.com/banshee-data/sensor.sim/internal/thermal"
	"github.com/banshee-data/sensor.sim/internal/timeutil"
)

// AmbientStep is the change applied by AddHeat and AddCold.
const AmbientStep = 10.0

// Options configure a new Engine.
type Options struct {
	Clock           timeutil.Clock
	Seed            uint64 // 0 selects the process-wide random source
	SampleInterval  time.Duration
	HistoryCapacity int
	Parameters      thermal.Parameters
	Kalman          kalman.Config
	// ClampAmbient makes SetParameters limit ambient to
	// [thermal.MinAmbient, thermal.MaxAmbient].
	ClampAmbient bool
}

// DefaultOptions returns options matching the built-in defaults.
func DefaultOptions() Options {
	return Options{
		Clock:           timeutil.RealClock{},
		SampleInterval:  session.DefaultInterval,
		HistoryCapacity: telemetry.DefaultCapacity,
		Parameters:      thermal.DefaultParameters(),
		Kalman:          kalman.DefaultConfig(),
		ClampAmbient:    true,
	}
}

// OptionsFromConfig maps a loaded configuration onto engine options.
func OptionsFromConfig(cfg *config.SimulationConfig, clock timeutil.Clock) Options {
	if cfg == nil {
		cfg = config.EmptySimulationConfig()
	}
	opts := DefaultOptions()
	if clock != nil {
		opts.Clock = clock
	}
	opts.Seed = cfg.GetRandomSeed()
	opts.SampleInterval = cfg.GetSampleInterval()
	opts.HistoryCapacity = cfg.GetHistoryCapacity()
	opts.Parameters = cfg.Parameters()
	opts.Kalman = cfg.KalmanConfig()
	opts.ClampAmbient = cfg.GetClampAmbient()
	return opts
}

// ParameterUpdate is a partial parameter change. Nil fields are left as is.
type ParameterUpdate struct {
	AmbientTemperature   *float64
	ResponseTimeConstant *float64
	NoiseLevel           *float64
	CalibrationOffset    *float64
}

// Status is a point-in-time snapshot for display collaborators.
type Status struct {
	Measured          float64
	Ambient           float64
	SensorTemperature float64
	AbsoluteError     float64
	Drift             float64
	CalibrationOffset float64
	Records           int
	Uptime            time.Duration
	Simulating        bool
	SessionState      session.State
	SessionID         uuid.UUID
}

// Engine is the simulation aggregate. It is safe for concurrent use.
type Engine struct {
	mu sync.Mutex

	clock        timeutil.Clock
	clampAmbient bool

	params    thermal.Parameters
	model     *thermal.Model
	sampler   *thermal.Sampler
	estimator *kalman.Estimator
	session   *session.Session
	history   *telemetry.History

	simulating   bool
	lastMeasured float64
	startedAt    time.Time
}

// New builds an engine with the sensor body at the configured ambient
// temperature. The simulation starts un-paused.
func New(opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	model := thermal.NewModel(opts.Clock, opts.Parameters.AmbientTemperature)
	est := kalman.NewEstimator(opts.Kalman)
	e := &Engine{
		clock:        opts.Clock,
		clampAmbient: opts.ClampAmbient,
		params:       opts.Parameters,
		model:        model,
		sampler:      thermal.NewSampler(model, thermal.NewNoiseInjector(opts.Seed)),
		estimator:    est,
		session:      session.New(opts.SampleInterval, est),
		history:      telemetry.NewHistory(opts.HistoryCapacity),
		simulating:   true,
		lastMeasured: opts.Parameters.AmbientTemperature,
		startedAt:    opts.Clock.Now(),
	}
	return e
}

// SetParameters applies a partial parameter update, effective from the next
// tick. Values are not validated; only ambient is clamped, and only when the
// engine was built with ClampAmbient.
func (e *Engine) SetParameters(u ParameterUpdate) thermal.Parameters {
	e.mu.Lock()
	defer e.mu.Unlock()

	if u.AmbientTemperature != nil {
		v := *u.AmbientTemperature
		if e.clampAmbient {
			v = thermal.ClampAmbient(v)
		}
		e.params.AmbientTemperature = v
	}
	if u.ResponseTimeConstant != nil {
		e.params.ResponseTimeConstant = *u.ResponseTimeConstant
	}
	if u.NoiseLevel != nil {
		e.params.NoiseLevel = *u.NoiseLevel
	}
	if u.CalibrationOffset != nil {
		e.params.CalibrationOffset = *u.CalibrationOffset
	}
	return e.params
}

// Parameters returns the current parameters.
func (e *Engine) Parameters() thermal.Parameters {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.params
}

// Tick advances the simulation by dt seconds and returns the latest measured
// temperature. Unless paused, the thermal model moves first, then one
// measurement is taken and appended to the telemetry history. Any session
// samples that fall due are taken afterwards with their own noise draws.
func (e *Engine) Tick(dt float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.simulating {
		e.model.Advance(dt, e.params)
		measured := e.sampler.Measure(e.params)
		e.history.Add(telemetry.Entry{
			Timestamp: e.clock.Now(),
			Measured:  measured,
			Ambient:   e.params.AmbientTemperature,
		})
		e.lastMeasured = measured
	}
	e.session.Advance(dt, e.sampleLocked)
	return e.lastMeasured
}

func (e *Engine) sampleLocked() session.Sample {
	return session.Sample{
		Timestamp: e.clock.Now(),
		Measured:  e.sampler.Measure(e.params),
		True:      e.params.AmbientTemperature,
	}
}

// StartSession starts a measurement session. It returns false, changing
// nothing, if a session is already running.
func (e *Engine) StartSession(mode session.Mode) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Start(mode, e.clock.Now(), e.sampleLocked)
}

// StopSession stops the running session and returns its summary. It reports
// false when no session was running or the log is empty.
func (e *Engine) StopSession() (session.Summary, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Stop(e.clock.Now())
}

// ResetAll returns the engine to its default state: session idle, logs and
// telemetry cleared, estimator re-initialised, parameters at their defaults,
// the sensor body at the default ambient temperature and the drift reference
// restarted. Calling it repeatedly has the same effect as calling it once.
func (e *Engine) ResetAll() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.params = thermal.DefaultParameters()
	e.model.Reset(e.params.AmbientTemperature)
	e.session.Reset()
	e.history.Clear()
	e.lastMeasured = e.params.AmbientTemperature
	e.startedAt = e.clock.Now()
	monitoring.Logf("simulation reset: ambient=%.1f response=%.1f noise=%.2f",
		e.params.AmbientTemperature, e.params.ResponseTimeConstant, e.params.NoiseLevel)
}

// Calibrate sets the calibration offset to ambient - sensor temperature and
// returns it.
func (e *Engine) Calibrate() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.params.CalibrationOffset = e.params.AmbientTemperature - e.model.State().SensorTemperature
	monitoring.Logf("sensor calibrated: offset=%.4f", e.params.CalibrationOffset)
	return e.params.CalibrationOffset
}

// AddHeat raises ambient by AmbientStep and returns the new value.
func (e *Engine) AddHeat() float64 { return e.stepAmbient(AmbientStep) }

// AddCold lowers ambient by AmbientStep and returns the new value.
func (e *Engine) AddCold() float64 { return e.stepAmbient(-AmbientStep) }

func (e *Engine) stepAmbient(delta float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.params.AmbientTemperature = thermal.ClampAmbient(e.params.AmbientTemperature + delta)
	return e.params.AmbientTemperature
}

// SetSimulating pauses or resumes the thermal model and telemetry. Session
// sampling is not affected.
func (e *Engine) SetSimulating(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.simulating = on
}

// ToggleSimulation flips the pause state and returns the new value.
func (e *Engine) ToggleSimulation() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.simulating = !e.simulating
	return e.simulating
}

// Simulating reports whether the simulation is running.
func (e *Engine) Simulating() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.simulating
}

// ClearSessionLog drops the record log and the estimator history while
// leaving the session state alone.
func (e *Engine) ClearSessionLog() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.session.ClearLog()
}

// SessionState returns the session state.
func (e *Engine) SessionState() session.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.State()
}

// LatestRecord returns the most recent session record.
func (e *Engine) LatestRecord() (session.Record, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Latest()
}

// SessionLog returns a copy of the record log.
func (e *Engine) SessionLog() []session.Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Records()
}

// Summary returns the summary of the last stopped session.
func (e *Engine) Summary() (session.Summary, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Summary()
}

// KalmanHistory returns the estimator's per-iteration results.
func (e *Engine) KalmanHistory() []kalman.Iteration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.estimator.History()
}

// EstimatorState returns the estimator's current state.
func (e *Engine) EstimatorState() kalman.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.estimator.State()
}

// SensorState returns the thermal model state.
func (e *Engine) SensorState() thermal.SensorState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.model.State()
}

// Telemetry returns the telemetry history, oldest first.
func (e *Engine) Telemetry() []telemetry.Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.Entries()
}

// LatestTelemetry returns the most recent telemetry entry.
func (e *Engine) LatestTelemetry() (telemetry.Entry, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.Latest()
}

// Status returns a snapshot of the readouts.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.model.State()
	return Status{
		Measured:          e.lastMeasured,
		Ambient:           e.params.AmbientTemperature,
		SensorTemperature: st.SensorTemperature,
		AbsoluteError:     math.Abs(e.lastMeasured - e.params.AmbientTemperature),
		Drift:             st.DriftOffset,
		CalibrationOffset: e.params.CalibrationOffset,
		Records:           e.session.Len(),
		Uptime:            e.clock.Since(e.startedAt),
		Simulating:        e.simulating,
		SessionState:      e.session.State(),
		SessionID:         e.session.ID(),
	}
}

// ExportSessionAsTable formats the record log of the current or most recent
// session. An empty log yields export.ErrNoData.
func (e *Engine) ExportSessionAsTable(opts export.Options) (*export.Table, error) {
	e.mu.Lock()
	mode := e.session.Mode()
	records := e.session.Records()
	e.mu.Unlock()
	return export.Build(mode, records, opts)
}
