package session

import (
	"time"

	"github.com/google/uuid"
)

// Mode selects how samples are processed.
type Mode int

const (
	// ModePlain logs raw measurements.
	ModePlain Mode = iota
	// ModeKalman routes each measurement through the scalar estimator.
	ModeKalman
)

func (m Mode) String() string {
	switch m {
	case ModePlain:
		return "plain"
	case ModeKalman:
		return "kalman"
	default:
		return "unknown"
	}
}

// ParseMode parses "plain" or "kalman".
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "plain":
		return ModePlain, true
	case "kalman":
		return ModeKalman, true
	default:
		return ModePlain, false
	}
}

// State is the session state machine state.
type State int

const (
	Idle State = iota
	RunningPlain
	RunningKalman
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case RunningPlain:
		return "running-plain"
	case RunningKalman:
		return "running-kalman"
	default:
		return "unknown"
	}
}

// Running reports whether s is one of the running states.
func (s State) Running() bool {
	return s == RunningPlain || s == RunningKalman
}

// Sample is a single reading handed to the session by its owner.
type Sample struct {
	Timestamp time.Time
	Measured  float64 // °C, sensor reading
	True      float64 // °C, ambient at the sampling instant
}

// SampleFunc takes one measurement. It is called once per due sample.
type SampleFunc func() Sample

// KalmanFields are the estimator outputs attached to a record in Kalman
// sessions.
type KalmanFields struct {
	Iteration         int
	Gain              float64
	Estimate          float64 // updated estimate
	UpdatedVariance   float64
	PredictedEstimate float64
	PredictedVariance float64
	EstimateError     float64 // |estimate - true|
}

// Record is one logged sample. Records are immutable once appended.
type Record struct {
	ElapsedSeconds      float64
	Timestamp           time.Time
	TrueTemperature     float64
	MeasuredTemperature float64
	AbsoluteError       float64 // |measured - true|
	Kalman              *KalmanFields
}

// Summary describes a finished session.
type Summary struct {
	ID                uuid.UUID
	Mode              Mode
	StartedAt         time.Time
	StoppedAt         time.Time
	Count             int
	MeanAbsoluteError float64
	StdAbsoluteError  float64
	MaxAbsoluteError  float64
	// MeanEstimateError is set only for Kalman sessions.
	MeanEstimateError *float64
}
