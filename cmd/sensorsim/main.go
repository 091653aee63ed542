// Command sensorsim runs the thermal sensor simulation and its Kalman
// estimator from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/banshee-data/sensor.sim/internal/config"
	"github.com/banshee-data/sensor.sim/internal/fsutil"
	"github.com/banshee-data/sensor.sim/internal/monitoring"
)

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	configPath string
	verbose    bool

	cfg    *config.SimulationConfig
	logger *zap.SugaredLogger
}

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	ro := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "sensorsim",
		Short:         "Thermal sensor simulator with a scalar Kalman estimator",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return ro.setup()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if ro.logger != nil {
				_ = ro.logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&ro.configPath, "config", "", "simulation config file (.json, .toml or .yaml)")
	rootCmd.PersistentFlags().BoolVarP(&ro.verbose, "verbose", "v", false, "verbose (development) logging")

	rootCmd.AddCommand(newSimulateCmd(ro))
	rootCmd.AddCommand(newRunCmd(ro))
	rootCmd.AddCommand(newMigrateCmd(ro))
	rootCmd.AddCommand(newSessionsCmd(ro))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func (ro *rootOptions) setup() error {
	logger, err := monitoring.NewZapLogger(ro.verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	ro.logger = logger
	monitoring.UseZap(logger)

	if ro.configPath == "" {
		cfg, err := config.LoadDefaultConfigFS(fsutil.OSFileSystem{})
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", config.DefaultConfigPath, err)
		}
		ro.cfg = cfg
		return nil
	}
	cfg, err := config.LoadSimulationConfig(ro.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	ro.cfg = cfg
	logger.Debugw("loaded config", "path", ro.configPath)
	return nil
}
