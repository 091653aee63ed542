package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/banshee-data/sensor.sim/internal/db"
	"github.com/banshee-data/sensor.sim/internal/engine"
	"github.com/banshee-data/sensor.sim/internal/export"
	"github.com/banshee-data/sensor.sim/internal/fsutil"
	"github.com/banshee-data/sensor.sim/internal/session"
	"github.com/banshee-data/sensor.sim/internal/units"
)

// outputFS is where exported tables are written.
var outputFS fsutil.FileSystem = fsutil.OSFileSystem{}

// outputOptions select where a finished session goes.
type outputOptions struct {
	outPath  string // CSV file, "-" for stdout
	dbPath   string
	unit     string
	timezone string
}

func (o *outputOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.outPath, "out", "", "write the session table as CSV to this file (- for stdout)")
	cmd.Flags().StringVar(&o.dbPath, "db", "", "store the session in this sqlite database")
	cmd.Flags().StringVar(&o.unit, "unit", "", "temperature unit for exported values ("+units.GetValidUnitsString()+")")
	cmd.Flags().StringVar(&o.timezone, "tz", "", "timezone for exported timestamps")
}

// resolve fills unset values from the config file.
func (o *outputOptions) resolve(cmd *cobra.Command, ro *rootOptions) {
	applyStringConfig(cmd, "unit", &o.unit, ro.cfg.GetTemperatureUnit())
	applyStringConfig(cmd, "tz", &o.timezone, ro.cfg.GetTimezone())
}

// finishSession stops the running session, prints its summary and writes it
// to the requested outputs.
func finishSession(ctx context.Context, cmd *cobra.Command, e *engine.Engine, o outputOptions) error {
	out := cmd.OutOrStdout()
	sum, ok := e.StopSession()
	if !ok {
		fmt.Fprintln(out, "no measurements recorded")
		return nil
	}
	printSummary(out, sum, o.unit)

	if o.outPath != "" {
		tbl, err := e.ExportSessionAsTable(export.Options{Unit: o.unit, Timezone: o.timezone})
		if err != nil {
			return fmt.Errorf("failed to export session: %w", err)
		}
		if err := writeTable(out, o.outPath, tbl); err != nil {
			return err
		}
	}

	if o.dbPath != "" {
		database, err := db.NewDB(o.dbPath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer database.Close()
		if err := database.SaveSession(ctx, sum, e.SessionLog()); err != nil {
			return err
		}
		fmt.Fprintf(out, "saved session %s to %s\n", sum.ID, o.dbPath)
	}
	return nil
}

func writeTable(stdout io.Writer, path string, tbl *export.Table) error {
	if path == "-" {
		return tbl.WriteCSV(stdout)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := outputFS.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	f, err := outputFS.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := tbl.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	fmt.Fprintf(stdout, "wrote %d rows to %s\n", len(tbl.Rows), path)
	return nil
}

func printSummary(w io.Writer, sum session.Summary, unit string) {
	suffix := units.Suffix(unit)
	fmt.Fprintf(w, "session %s (%s)\n", sum.ID, sum.Mode)
	fmt.Fprintf(w, "  samples:            %d\n", sum.Count)
	fmt.Fprintf(w, "  duration:           %s\n", sum.StoppedAt.Sub(sum.StartedAt))
	fmt.Fprintf(w, "  mean abs error:     %.4f %s\n", units.ConvertDelta(sum.MeanAbsoluteError, unit), suffix)
	fmt.Fprintf(w, "  std abs error:      %.4f %s\n", units.ConvertDelta(sum.StdAbsoluteError, unit), suffix)
	fmt.Fprintf(w, "  max abs error:      %.4f %s\n", units.ConvertDelta(sum.MaxAbsoluteError, unit), suffix)
	if sum.MeanEstimateError != nil {
		fmt.Fprintf(w, "  mean estimate error: %.6f %s\n", units.ConvertDelta(*sum.MeanEstimateError, unit), suffix)
	}
}

// applyStringConfig copies a config value into a flag variable unless the
// flag was set explicitly.
func applyStringConfig(cmd *cobra.Command, name string, target *string, value string) {
	if cmd.Flags().Changed(name) || value == "" {
		return
	}
	*target = value
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
