// Package export turns a session record log into a row-oriented table and
// writes it as CSV. All rounding and unit conversion happen here; the
// engine keeps full precision.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/banshee-data/sensor.sim/internal/session"
	"github.com/banshee-data/sensor.sim/internal/units"
)

// NotApplicable marks a value that does not exist for a row, such as the
// Kalman fields of a record taken outside the estimator.
const NotApplicable = "N/A"

// ErrNoData is returned when a table is requested for an empty log.
var ErrNoData = errors.New("export: session log is empty")

// Decimal places used for each kind of column.
const (
	timeDecimals        = 1
	temperatureDecimals = 4
	kalmanDecimals      = 6
)

// Column names.
var (
	PlainColumns = []string{
		"elapsed_seconds",
		"true_temperature",
		"measured_temperature",
		"absolute_error",
		"timestamp",
	}
	KalmanColumns = []string{
		"iteration",
		"elapsed_seconds",
		"true_temperature",
		"measured_temperature",
		"gain",
		"estimate",
		"updated_variance",
		"predicted_estimate",
		"predicted_variance",
		"absolute_error",
		"estimate_error",
	}
)

// Options control the presentation of exported values.
type Options struct {
	Unit     string // units.Celsius when empty
	Timezone string // UTC when empty
}

// Table is the tabular form of a session log. Every row has len(Header)
// cells.
type Table struct {
	Mode   session.Mode
	Unit   string
	Header []string
	Rows   [][]string
}

// Build formats records for the given mode. An empty log yields ErrNoData.
func Build(mode session.Mode, records []session.Record, opts Options) (*Table, error) {
	if len(records) == 0 {
		return nil, ErrNoData
	}
	unit := opts.Unit
	if unit == "" {
		unit = units.Celsius
	}
	if !units.IsValid(unit) {
		return nil, fmt.Errorf("export: invalid unit %q (valid: %s)", unit, units.GetValidUnitsString())
	}
	if opts.Timezone != "" && opts.Timezone != "UTC" && !units.IsTimezoneValid(opts.Timezone) {
		return nil, fmt.Errorf("export: unknown timezone %q", opts.Timezone)
	}

	f := formatter{unit: unit, tz: opts.Timezone}
	t := &Table{Mode: mode, Unit: unit}
	if mode == session.ModeKalman {
		t.Header = append([]string(nil), KalmanColumns...)
	} else {
		t.Header = append([]string(nil), PlainColumns...)
	}

	t.Rows = make([][]string, 0, len(records))
	for _, r := range records {
		if mode == session.ModeKalman {
			t.Rows = append(t.Rows, f.kalmanRow(r))
		} else {
			t.Rows = append(t.Rows, f.plainRow(r))
		}
	}
	return t, nil
}

// WriteCSV writes the header and rows to w.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("failed to write rows: %w", err)
	}
	return nil
}

type formatter struct {
	unit string
	tz   string
}

func (f formatter) plainRow(r session.Record) []string {
	return []string{
		fixed(r.ElapsedSeconds, timeDecimals),
		fixed(units.ConvertTemperature(r.TrueTemperature, f.unit), temperatureDecimals),
		fixed(units.ConvertTemperature(r.MeasuredTemperature, f.unit), temperatureDecimals),
		fixed(units.ConvertDelta(r.AbsoluteError, f.unit), temperatureDecimals),
		f.timestamp(r.Timestamp),
	}
}

func (f formatter) kalmanRow(r session.Record) []string {
	row := []string{
		NotApplicable,
		fixed(r.ElapsedSeconds, timeDecimals),
		fixed(units.ConvertTemperature(r.TrueTemperature, f.unit), temperatureDecimals),
		fixed(units.ConvertTemperature(r.MeasuredTemperature, f.unit), temperatureDecimals),
		NotApplicable, NotApplicable, NotApplicable, NotApplicable, NotApplicable,
		fixed(units.ConvertDelta(r.AbsoluteError, f.unit), temperatureDecimals),
		NotApplicable,
	}
	if k := r.Kalman; k != nil {
		row[0] = strconv.Itoa(k.Iteration)
		row[4] = fixed(k.Gain, kalmanDecimals)
		row[5] = fixed(units.ConvertTemperature(k.Estimate, f.unit), kalmanDecimals)
		row[6] = fixed(units.ConvertVariance(k.UpdatedVariance, f.unit), kalmanDecimals)
		row[7] = fixed(units.ConvertTemperature(k.PredictedEstimate, f.unit), kalmanDecimals)
		row[8] = fixed(units.ConvertVariance(k.PredictedVariance, f.unit), kalmanDecimals)
		row[10] = fixed(units.ConvertDelta(k.EstimateError, f.unit), kalmanDecimals)
	}
	return row
}

func (f formatter) timestamp(ts time.Time) string {
	if ts.IsZero() {
		return NotApplicable
	}
	local, err := units.ConvertTime(ts, f.tz)
	if err != nil {
		local = ts.UTC()
	}
	return local.Format(time.RFC3339Nano)
}

func fixed(v float64, decimals int) string {
	return strconv.FormatFloat(v, 'f', decimals, 64)
}
