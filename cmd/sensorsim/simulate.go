package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/sensor.sim/internal/engine"
	"github.com/banshee-data/sensor.sim/internal/session"
	"github.com/banshee-data/sensor.sim/internal/timeutil"
)

type simulateOptions struct {
	duration  time.Duration
	dt        time.Duration
	mode      string
	ambient   float64
	response  float64
	noise     float64
	seed      uint64
	calibrate bool
	output    outputOptions
}

// newSimulateCmd runs a session as fast as possible on a mock clock, so the
// result depends only on the inputs and the seed.
func newSimulateCmd(ro *rootOptions) *cobra.Command {
	so := &simulateOptions{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a deterministic measurement session on simulated time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSimulate(cmd, ro, so)
		},
	}

	cmd.Flags().DurationVar(&so.duration, "duration", time.Minute, "simulated session length")
	cmd.Flags().DurationVar(&so.dt, "dt", 0, "tick length (default: config tick_interval)")
	cmd.Flags().StringVar(&so.mode, "mode", "kalman", "session mode: plain or kalman")
	cmd.Flags().Float64Var(&so.ambient, "ambient", 0, "target ambient temperature in °C")
	cmd.Flags().Float64Var(&so.response, "response", 0, "response time constant in seconds")
	cmd.Flags().Float64Var(&so.noise, "noise", 0, "noise amplitude in °C")
	cmd.Flags().Uint64Var(&so.seed, "seed", 0, "random seed (0: config random_seed or time-seeded)")
	cmd.Flags().BoolVar(&so.calibrate, "calibrate", false, "calibrate the sensor before starting")
	so.output.addFlags(cmd)

	return cmd
}

func runSimulate(cmd *cobra.Command, ro *rootOptions, so *simulateOptions) error {
	mode, ok := session.ParseMode(so.mode)
	if !ok {
		return fmt.Errorf("invalid mode %q: expected plain or kalman", so.mode)
	}
	if so.duration <= 0 {
		return fmt.Errorf("duration must be positive, got %s", so.duration)
	}
	dt := so.dt
	if !cmd.Flags().Changed("dt") {
		dt = ro.cfg.GetTickInterval()
	}
	if dt <= 0 {
		return fmt.Errorf("dt must be positive, got %s", dt)
	}
	so.output.resolve(cmd, ro)

	clock := timeutil.NewMockClock(time.Now().UTC())
	opts := engine.OptionsFromConfig(ro.cfg, clock)
	if cmd.Flags().Changed("seed") {
		opts.Seed = so.seed
	}
	e := engine.New(opts)
	e.SetParameters(parameterFlags(cmd, so.ambient, so.response, so.noise))
	if so.calibrate {
		e.Calibrate()
	}

	e.StartSession(mode)
	steps := int(so.duration / dt)
	for i := 0; i < steps; i++ {
		clock.Advance(dt)
		e.Tick(dt.Seconds())
	}
	ro.logger.Debugw("simulation finished", "ticks", steps, "dt", dt)

	return finishSession(cmd.Context(), cmd, e, so.output)
}

// parameterFlags builds a partial update from the parameter flags that were
// set on the command line.
func parameterFlags(cmd *cobra.Command, ambient, response, noise float64) engine.ParameterUpdate {
	var u engine.ParameterUpdate
	if cmd.Flags().Changed("ambient") {
		u.AmbientTemperature = &ambient
	}
	if cmd.Flags().Changed("response") {
		u.ResponseTimeConstant = &response
	}
	if cmd.Flags().Changed("noise") {
		u.NoiseLevel = &noise
	}
	return u
}
