package kalman

import "math"

// Starting constants applied whenever the estimator is (re)initialised.
const (
	DefaultInitialEstimate     = 10.0
	DefaultInitialVariance     = 10000.0001
	DefaultProcessVariance     = 0.0001 // q
	DefaultMeasurementVariance = 0.01   // r
)

// Config holds the initial state and the fixed noise variances.
type Config struct {
	InitialEstimate     float64
	InitialVariance     float64
	ProcessVariance     float64
	MeasurementVariance float64
}

// DefaultConfig returns the default starting constants.
func DefaultConfig() Config {
	return Config{
		InitialEstimate:     DefaultInitialEstimate,
		InitialVariance:     DefaultInitialVariance,
		ProcessVariance:     DefaultProcessVariance,
		MeasurementVariance: DefaultMeasurementVariance,
	}
}

// State is the filter state. P is the variance carried into the next
// update, i.e. the predicted variance of the previous step.
type State struct {
	X float64 // current estimate
	P float64 // current estimate variance
	Q float64 // process-noise variance
	R float64 // measurement-noise variance
	K float64 // most recent gain
}

// Result is the outcome of one update/predict cycle.
type Result struct {
	Gain              float64
	UpdatedEstimate   float64
	UpdatedVariance   float64
	PredictedEstimate float64
	PredictedVariance float64
}

// Iteration is one row of the estimator's derived history.
type Iteration struct {
	N           int     // 1-based iteration number
	Measurement float64 // z
	TrueValue   float64
	Result
}

// Estimator is the scalar Kalman filter. It is not safe for concurrent use;
// callers serialise access.
type Estimator struct {
	cfg     Config
	state   State
	history []Iteration
}

// NewEstimator creates an estimator initialised from cfg.
func NewEstimator(cfg Config) *Estimator {
	e := &Estimator{cfg: cfg}
	e.Reset()
	return e
}

// Reset restores the starting constants and clears the derived history.
func (e *Estimator) Reset() {
	e.state = State{
		X: e.cfg.InitialEstimate,
		P: e.cfg.InitialVariance,
		Q: e.cfg.ProcessVariance,
		R: e.cfg.MeasurementVariance,
	}
	e.history = nil
}

// Update folds one measurement into the estimate and runs the predict step.
//
//	K  = P / (P + r)
//	x  = x + K (z - x)
//	P  = (1 - K) P
//	x' = x,  P' = P + q
//
// P' becomes the variance carried into the next call.
func (e *Estimator) Update(z float64) Result {
	s := &e.state

	s.K = s.P / (s.P + s.R)
	s.X = s.X + s.K*(z-s.X)
	s.P = (1 - s.K) * s.P
	updatedP := s.P

	predictedP := s.P + s.Q
	s.P = predictedP

	return Result{
		Gain:              s.K,
		UpdatedEstimate:   s.X,
		UpdatedVariance:   updatedP,
		PredictedEstimate: s.X,
		PredictedVariance: predictedP,
	}
}

// Observe runs Update and records the iteration, together with the true
// value at the sampling instant, in the derived history.
func (e *Estimator) Observe(z, trueValue float64) Iteration {
	it := Iteration{
		N:           len(e.history) + 1,
		Measurement: z,
		TrueValue:   trueValue,
		Result:      e.Update(z),
	}
	e.history = append(e.history, it)
	return it
}

// State returns a copy of the filter state.
func (e *Estimator) State() State {
	return e.state
}

// History returns a copy of the recorded iterations.
func (e *Estimator) History() []Iteration {
	out := make([]Iteration, len(e.history))
	copy(out, e.history)
	return out
}

// ClearHistory drops the derived history but keeps the filter state.
func (e *Estimator) ClearHistory() {
	e.history = nil
}

// SteadyStateVariance is the fixed point of the carried (predicted) variance
// for a constant-measurement stream: the scalar Riccati solution
// P* = q/2 + sqrt(q²/4 + q r).
func SteadyStateVariance(q, r float64) float64 {
	return q/2 + math.Sqrt(q*q/4+q*r)
}
