// Package session implements the measurement-session state machine: it
// decides when samples are taken, accumulates the record log, optionally
// routes samples through the scalar Kalman estimator, and summarises the log
// when a session stops.
//
// The session is caller-driven. Its owner advances simulated time with
// Advance and supplies a SampleFunc; no timers are involved.
package session

import (
	"math"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/sensor.sim/internal/kalman"
	"github.com/banshee-data/sensor.sim/internal/monitoring"
)

// DefaultInterval is the period between samples of a running session.
const DefaultInterval = 5 * time.Second

// scheduleEpsilon absorbs floating-point error in accumulated tick lengths so
// that fifty 0.1 s ticks count as 5 s.
const scheduleEpsilon = 1e-9

// Session is the measurement session state machine. It is not safe for
// concurrent use; the engine serialises access.
type Session struct {
	interval  float64 // seconds
	estimator *kalman.Estimator

	state        State
	mode         Mode
	id           uuid.UUID
	startedAt    time.Time
	elapsed      float64 // simulated seconds since start
	nextSampleAt float64
	records      []Record
	summary      *Summary
}

// New creates an idle session. A non-positive interval selects
// DefaultInterval.
func New(interval time.Duration, estimator *kalman.Estimator) *Session {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if estimator == nil {
		estimator = kalman.NewEstimator(kalman.DefaultConfig())
	}
	return &Session{
		interval:  interval.Seconds(),
		estimator: estimator,
	}
}

// Start begins a session in the given mode, clears the record log and takes
// one immediate sample. A Kalman session also re-initialises the estimator.
// Starting while any session is running is a no-op and returns false.
func (s *Session) Start(mode Mode, now time.Time, sample SampleFunc) bool {
	if s.state.Running() {
		return false
	}

	s.mode = mode
	if mode == ModeKalman {
		s.state = RunningKalman
		s.estimator.Reset()
	} else {
		s.state = RunningPlain
	}
	s.id = uuid.New()
	s.startedAt = now
	s.elapsed = 0
	s.records = nil
	s.summary = nil

	s.takeSample(0, sample)
	s.nextSampleAt = s.interval

	monitoring.Logf("session %s started: mode=%s interval=%.1fs", s.id, mode, s.interval)
	return true
}

// SampleDue reports whether the next scheduled sample is due.
func (s *Session) SampleDue() bool {
	return s.state.Running() && s.elapsed+scheduleEpsilon >= s.nextSampleAt
}

// Advance adds dt seconds of simulated time and takes at most one sample,
// stamped with the latest scheduled instant that has become due. Instants
// skipped by a long step are not replayed. It returns the number of records
// appended (0 or 1). An idle session ignores the call, as does a non-finite
// dt, which cannot be scheduled.
func (s *Session) Advance(dt float64, sample SampleFunc) int {
	if !s.state.Running() || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return 0
	}
	s.elapsed += dt
	if !s.SampleDue() {
		return 0
	}

	at := math.Floor((s.elapsed+scheduleEpsilon)/s.interval) * s.interval
	if at < s.nextSampleAt {
		at = s.nextSampleAt
	}
	next := at + s.interval
	if next <= at {
		// interval lost to float precision at this magnitude
		next = math.Nextafter(at, math.Inf(1))
	}
	s.nextSampleAt = next

	if s.takeSample(at, sample) {
		return 1
	}
	return 0
}

func (s *Session) takeSample(elapsed float64, sample SampleFunc) bool {
	smp := sample()
	// a stop observed while the sample was in flight drops it
	if !s.state.Running() {
		return false
	}

	rec := Record{
		ElapsedSeconds:      elapsed,
		Timestamp:           smp.Timestamp,
		TrueTemperature:     smp.True,
		MeasuredTemperature: smp.Measured,
		AbsoluteError:       math.Abs(smp.Measured - smp.True),
	}
	if s.state == RunningKalman {
		it := s.estimator.Observe(smp.Measured, smp.True)
		rec.Kalman = &KalmanFields{
			Iteration:         it.N,
			Gain:              it.Gain,
			Estimate:          it.UpdatedEstimate,
			UpdatedVariance:   it.UpdatedVariance,
			PredictedEstimate: it.PredictedEstimate,
			PredictedVariance: it.PredictedVariance,
			EstimateError:     math.Abs(it.UpdatedEstimate - smp.True),
		}
	}
	s.records = append(s.records, rec)
	return true
}

// Stop ends the running session and, if any records were collected,
// computes its summary. Stopping an idle session is a no-op and returns
// false.
func (s *Session) Stop(now time.Time) (Summary, bool) {
	if !s.state.Running() {
		return Summary{}, false
	}
	s.state = Idle

	if len(s.records) == 0 {
		monitoring.Logf("session %s stopped with no records", s.id)
		return Summary{}, false
	}
	sum := summarize(s.id, s.mode, s.startedAt, now, s.records)
	s.summary = &sum
	monitoring.Logf("session %s stopped: count=%d mean_abs_error=%.4f", s.id, sum.Count, sum.MeanAbsoluteError)
	return sum, true
}

// Reset returns to Idle from any state, clears the log and the summary, and
// re-initialises the estimator.
func (s *Session) Reset() {
	s.state = Idle
	s.id = uuid.Nil
	s.startedAt = time.Time{}
	s.elapsed = 0
	s.nextSampleAt = 0
	s.records = nil
	s.summary = nil
	s.estimator.Reset()
}

// ClearLog drops the record log and the estimator's derived history without
// changing the state machine.
func (s *Session) ClearLog() {
	s.records = nil
	s.estimator.ClearHistory()
}

// State returns the current state.
func (s *Session) State() State { return s.state }

// Mode returns the mode of the current or most recent session.
func (s *Session) Mode() Mode { return s.mode }

// ID returns the identifier of the current or most recent session.
func (s *Session) ID() uuid.UUID { return s.id }

// StartedAt returns the wall-clock start of the current or most recent
// session.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// Interval returns the sampling period.
func (s *Session) Interval() time.Duration {
	return time.Duration(s.interval * float64(time.Second))
}

// Elapsed returns the simulated seconds since the session started.
func (s *Session) Elapsed() float64 { return s.elapsed }

// Estimator returns the session's estimator.
func (s *Session) Estimator() *kalman.Estimator { return s.estimator }

// Records returns a copy of the record log.
func (s *Session) Records() []Record {
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Len returns the number of logged records.
func (s *Session) Len() int { return len(s.records) }

// Latest returns the most recent record.
func (s *Session) Latest() (Record, bool) {
	if len(s.records) == 0 {
		return Record{}, false
	}
	return s.records[len(s.records)-1], true
}

// Summary returns the summary of the most recently stopped session. It
// reports false when no session has stopped with records since the last
// start or reset.
func (s *Session) Summary() (Summary, bool) {
	if s.summary == nil {
		return Summary{}, false
	}
	return *s.summary, true
}

func summarize(id uuid.UUID, mode Mode, started, stopped time.Time, records []Record) Summary {
	errs := make([]float64, len(records))
	for i, r := range records {
		errs[i] = r.AbsoluteError
	}

	sum := Summary{
		ID:                id,
		Mode:              mode,
		StartedAt:         started,
		StoppedAt:         stopped,
		Count:             len(records),
		MeanAbsoluteError: stat.Mean(errs, nil),
		MaxAbsoluteError:  floats.Max(errs),
	}
	if len(errs) > 1 {
		sum.StdAbsoluteError = stat.StdDev(errs, nil)
	}

	if mode == ModeKalman {
		estErrs := make([]float64, 0, len(records))
		for _, r := range records {
			if r.Kalman != nil {
				estErrs = append(estErrs, r.Kalman.EstimateError)
			}
		}
		if len(estErrs) > 0 {
			m := stat.Mean(estErrs, nil)
			sum.MeanEstimateError = &m
		}
	}
	return sum
}
