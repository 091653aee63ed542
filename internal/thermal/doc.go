// Package thermal models the physical side of the simulated temperature
// sensor: the first-order lag of the sensor body behind the ambient
// temperature, slow linear drift, bounded measurement noise, and the single
// measurement formula shared by telemetry ticks and session samples.
//
// Key types: Parameters, SensorState, Model, NoiseInjector, Sampler.
//
// No package in this layer validates its inputs. Out-of-range parameters
// (negative noise, non-positive response time) propagate through the
// arithmetic; clamping is the caller's decision.
package thermal
