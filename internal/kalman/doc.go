// Package kalman implements the scalar recursive estimator used by Kalman
// measurement sessions: a one-dimensional, linear, time-invariant Kalman
// filter over an assumed-constant quantity with a random-walk process model
// and no control input.
//
// Key types: Estimator, State, Result, Iteration.
//
// The estimator does not sanitise its input: NaN or infinite measurements
// propagate into the state.
package kalman
