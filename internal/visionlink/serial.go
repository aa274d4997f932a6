package visionlink

import (
	"go.bug.st/serial"
)

// DialSerial opens the serial port a vision unit is wired to and wraps it
// in a mux.
func DialSerial(path string, opts PortOptions) (*Mux[serial.Port], error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}

	return NewMux[serial.Port](port), nil
}
