package visionlink

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/bemo-play/tangram-engine/internal/timeutil"
)

// MockPort replays a canned frame line at a fixed interval, standing in for
// a vision unit during development. Commands written to it are captured for
// inspection instead of reaching hardware.
type MockPort struct {
	reader *io.PipeReader
	writer *io.PipeWriter

	mu       sync.Mutex
	commands bytes.Buffer

	stop     chan struct{}
	stopOnce sync.Once
}

// NewMockPort starts a generator emitting frameLine every interval.
func NewMockPort(frameLine []byte, interval time.Duration) *MockPort {
	return newMockPort(frameLine, interval, timeutil.RealClock{})
}

func newMockPort(frameLine []byte, interval time.Duration, clock timeutil.Clock) *MockPort {
	r, w := io.Pipe()
	p := &MockPort{
		reader: r,
		writer: w,
		stop:   make(chan struct{}),
	}

	line := append([]byte(nil), frameLine...)
	if len(line) == 0 || line[len(line)-1] != '\n' {
		line = append(line, '\n')
	}

	go func() {
		ticker := clock.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-p.stop:
				return
			case <-ticker.C():
				if _, err := w.Write(line); err != nil {
					return
				}
			}
		}
	}()

	return p
}

// NewMockLink wraps a replaying mock port in a mux, for --dev runs with no
// unit attached.
func NewMockLink(frameLine []byte, interval time.Duration) *Mux[*MockPort] {
	return NewMux(NewMockPort(frameLine, interval))
}

func (p *MockPort) Read(buf []byte) (int, error) {
	return p.reader.Read(buf)
}

func (p *MockPort) Write(buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.commands.Write(buf)
}

// Commands returns everything written to the mock unit so far.
func (p *MockPort) Commands() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.commands.String()
}

func (p *MockPort) Close() error {
	p.stopOnce.Do(func() { close(p.stop) })
	return p.writer.Close()
}

// TestablePort implements Port with fine-grained control over reads,
// writes and errors for mux tests.
type TestablePort struct {
	mu sync.Mutex

	// ReadBuffer holds data to be returned by Read calls
	ReadBuffer *bytes.Buffer

	// WriteBuffer captures data written to the port
	WriteBuffer *bytes.Buffer

	// ReadError is returned by the next Read call if set
	ReadError error

	// WriteError is returned by the next Write call if set
	WriteError error

	// CloseError is returned by Close if set
	CloseError error

	// Closed indicates whether Close was called
	Closed bool

	// BlockReads causes Read to block until data is added or Close is
	// called, like a quiet transport
	BlockReads bool

	readCond *sync.Cond
}

// NewTestablePort creates a TestablePort with empty buffers.
func NewTestablePort() *TestablePort {
	p := &TestablePort{
		ReadBuffer:  bytes.NewBuffer(nil),
		WriteBuffer: bytes.NewBuffer(nil),
	}
	p.readCond = sync.NewCond(&p.mu)
	return p
}

func (p *TestablePort) Read(buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Closed {
		return 0, errors.New("visionlink: port closed")
	}

	if p.ReadError != nil {
		err := p.ReadError
		p.ReadError = nil
		return 0, err
	}

	if p.BlockReads && p.ReadBuffer.Len() == 0 {
		for !p.Closed && p.ReadBuffer.Len() == 0 {
			p.readCond.Wait()
		}
		if p.Closed {
			return 0, io.EOF
		}
	}

	return p.ReadBuffer.Read(buf)
}

func (p *TestablePort) Write(buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Closed {
		return 0, errors.New("visionlink: port closed")
	}

	if p.WriteError != nil {
		err := p.WriteError
		p.WriteError = nil
		return 0, err
	}

	return p.WriteBuffer.Write(buf)
}

func (p *TestablePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Closed = true
	p.readCond.Broadcast() // wake blocked readers

	return p.CloseError
}

// AddReadData appends data for subsequent Read calls and wakes a blocked
// reader.
func (p *TestablePort) AddReadData(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ReadBuffer.Write(data)
	p.readCond.Signal()
}

// WrittenData returns all data written to the port.
func (p *TestablePort) WrittenData() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.WriteBuffer.String()
}
