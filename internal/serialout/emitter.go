package serialout

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/sensor.sim/internal/telemetry"
	"github.com/banshee-data/sensor.sim/internal/units"
)

var ErrWriteFailed = errors.New("failed to write to serial port")

// Reading is the JSON shape of one emitted line.
type Reading struct {
	Time     string  `json:"time"`
	Measured float64 `json:"measured"`
	Ambient  float64 `json:"ambient"`
	Unit     string  `json:"unit"`
}

// Emitter writes telemetry entries to a port, one JSON object per line.
type Emitter struct {
	mu     sync.Mutex
	port   Porter
	unit   string
	closed bool
	lines  int
}

// NewEmitter wraps port. An empty or unknown unit selects Celsius.
func NewEmitter(port Porter, unit string) *Emitter {
	if !units.IsValid(unit) {
		unit = units.Celsius
	}
	return &Emitter{port: port, unit: unit}
}

// Open opens path with opener and returns an emitter for it.
func Open(opener Opener, path string, opts PortOptions, unit string) (*Emitter, error) {
	if opener == nil {
		opener = OpenSerial
	}
	port, err := opener(path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", path, err)
	}
	return NewEmitter(port, unit), nil
}

// Emit writes one reading. Emitting on a closed emitter is an error.
func (e *Emitter) Emit(entry telemetry.Entry) error {
	line, err := json.Marshal(Reading{
		Time:     entry.Timestamp.UTC().Format(time.RFC3339Nano),
		Measured: units.ConvertTemperature(entry.Measured, e.unit),
		Ambient:  units.ConvertTemperature(entry.Ambient, e.unit),
		Unit:     e.unit,
	})
	if err != nil {
		// NaN and Inf are not representable in JSON
		return fmt.Errorf("failed to encode reading: %w", err)
	}
	line = append(line, '\n')

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrWriteFailed
	}
	n, err := e.port.Write(line)
	if err != nil {
		return err
	}
	if n != len(line) {
		return ErrWriteFailed
	}
	e.lines++
	return nil
}

// Lines returns the number of lines written.
func (e *Emitter) Lines() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lines
}

// Close closes the port. Closing twice is a no-op.
func (e *Emitter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.port.Close()
}
