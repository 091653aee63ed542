// Package engine owns the whole simulation as one aggregate: parameters,
// the thermal model, the estimator, the measurement session and the
// telemetry history. Every operation takes the engine lock, so a tick, a
// sample and a reset never interleave.
//
// The engine is driven by its caller through Tick(dt). internal/runner
// provides a real-time driver; tests and the simulate command advance a
// mock clock instead.
package engine
