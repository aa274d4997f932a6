package visionlink

import "io"

// Port is the minimal transport interface the mux needs. Serial ports, the
// UDP adapter and the test ports all satisfy it, which keeps the mux free
// of any hardware dependency.
type Port interface {
	io.ReadWriter
	io.Closer
}
