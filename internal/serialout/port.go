// Package serialout emulates a serial temperature instrument: each telemetry
// tick is written to a port as one JSON line, the way a bench sensor streams
// readings to a logger.
package serialout

import (
	"io"

	"go.bug.st/serial"
)

// Porter is the minimal interface needed for an output port. It lets tests
// capture output without real serial hardware.
type Porter interface {
	io.Writer
	io.Closer
}

// Opener opens a port at path with the given options.
type Opener func(path string, opts PortOptions) (Porter, error)

// OpenSerial opens a real serial port with go.bug.st/serial.
func OpenSerial(path string, opts PortOptions) (Porter, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}
	return port, nil
}
