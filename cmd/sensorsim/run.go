package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/sensor.sim/internal/engine"
	"github.com/banshee-data/sensor.sim/internal/runner"
	"github.com/banshee-data/sensor.sim/internal/serialout"
	"github.com/banshee-data/sensor.sim/internal/session"
	"github.com/banshee-data/sensor.sim/internal/timeutil"
)

type runOptions struct {
	duration   time.Duration
	mode       string
	ambient    float64
	response   float64
	noise      float64
	serialPath string
	serialPort serialout.PortOptions
	output     outputOptions
}

func newRunCmd(ro *rootOptions) *cobra.Command {
	rn := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the simulation in real time",
		Long: "Run the simulation at the configured tick interval until the duration " +
			"elapses or the process is interrupted. With --serial each tick is " +
			"written to a serial port as a JSON line.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRealtime(cmd, ro, rn, timeutil.RealClock{}, serialout.OpenSerial)
		},
	}

	cmd.Flags().DurationVar(&rn.duration, "duration", 0, "stop after this long (0: until interrupted)")
	cmd.Flags().StringVar(&rn.mode, "mode", "", "start a measurement session: plain or kalman")
	cmd.Flags().Float64Var(&rn.ambient, "ambient", 0, "target ambient temperature in °C")
	cmd.Flags().Float64Var(&rn.response, "response", 0, "response time constant in seconds")
	cmd.Flags().Float64Var(&rn.noise, "noise", 0, "noise amplitude in °C")
	cmd.Flags().StringVar(&rn.serialPath, "serial", "", "emit readings to this serial port")
	cmd.Flags().IntVar(&rn.serialPort.BaudRate, "baud", 9600, "serial baud rate")
	cmd.Flags().IntVar(&rn.serialPort.DataBits, "data-bits", 8, "serial data bits")
	cmd.Flags().IntVar(&rn.serialPort.StopBits, "stop-bits", 1, "serial stop bits (1 or 2)")
	cmd.Flags().StringVar(&rn.serialPort.Parity, "parity", "N", "serial parity (N, E or O)")
	rn.output.addFlags(cmd)

	return cmd
}

func runRealtime(cmd *cobra.Command, ro *rootOptions, rn *runOptions, clock timeutil.Clock, opener serialout.Opener) error {
	var mode session.Mode
	if rn.mode != "" {
		m, ok := session.ParseMode(rn.mode)
		if !ok {
			return fmt.Errorf("invalid mode %q: expected plain or kalman", rn.mode)
		}
		mode = m
	}
	if rn.duration < 0 {
		return fmt.Errorf("duration must not be negative, got %s", rn.duration)
	}
	rn.output.resolve(cmd, ro)

	e := engine.New(engine.OptionsFromConfig(ro.cfg, clock))
	e.SetParameters(parameterFlags(cmd, rn.ambient, rn.response, rn.noise))

	interval := ro.cfg.GetTickInterval()
	cfg := runner.Config{Interval: interval}
	if rn.duration > 0 {
		cfg.MaxTicks = int(rn.duration / interval)
		if cfg.MaxTicks == 0 {
			cfg.MaxTicks = 1
		}
	}

	if rn.serialPath != "" {
		em, err := serialout.Open(opener, rn.serialPath, rn.serialPort, rn.output.unit)
		if err != nil {
			return err
		}
		defer em.Close()
		cfg.Sink = em
		ro.logger.Infow("emitting readings", "port", rn.serialPath, "baud", rn.serialPort.BaudRate)
	}

	if rn.mode != "" {
		e.StartSession(mode)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := runner.New(e, clock, cfg)
	if err := r.Run(ctx); err != nil && !isCancellation(err) {
		return err
	}

	st := e.Status()
	ro.logger.Infow("simulation stopped",
		"ticks", r.Ticks(),
		"measured", st.Measured,
		"ambient", st.Ambient,
		"drift", st.Drift,
		"uptime", st.Uptime,
		"sink_errors", r.SinkErrors(),
	)

	if rn.mode == "" {
		return nil
	}
	// the interrupt context is done; finish with a fresh one
	return finishSession(context.WithoutCancel(cmd.Context()), cmd, e, rn.output)
}
