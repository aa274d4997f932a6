package visionlink

import (
	"errors"
	"fmt"
	"net"
	"sync"
)

// ErrNoPeer is returned when a command is sent before any vision unit has
// contacted the listener. Network units push first; the platform can only
// answer an address it has seen.
var ErrNoPeer = errors.New("visionlink: no vision unit has contacted this listener yet")

// UDPPort adapts a UDP socket to the Port interface. Network vision units
// push frame datagrams to the platform, one or more complete lines per
// datagram; commands go back to whichever unit address sent most recently.
type UDPPort struct {
	conn *net.UDPConn

	mu       sync.Mutex
	peer     *net.UDPAddr
	leftover []byte
}

// NewUDPPort listens for vision unit datagrams on addr.
func NewUDPPort(addr string) (*UDPPort, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("visionlink: resolve %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("visionlink: listen %s: %w", addr, err)
	}
	return &UDPPort{conn: conn}, nil
}

// ListenUDP builds a mux over a UDP listener.
func ListenUDP(addr string) (*Mux[*UDPPort], error) {
	port, err := NewUDPPort(addr)
	if err != nil {
		return nil, err
	}
	return NewMux(port), nil
}

// Read hands out the remainder of the current datagram, or blocks for the
// next one. A datagram missing its trailing newline gets one appended so
// the line scanner never glues two units' frames together.
func (u *UDPPort) Read(p []byte) (int, error) {
	u.mu.Lock()
	if len(u.leftover) > 0 {
		n := copy(p, u.leftover)
		u.leftover = u.leftover[n:]
		u.mu.Unlock()
		return n, nil
	}
	u.mu.Unlock()

	buf := make([]byte, 64*1024)
	n, peer, err := u.conn.ReadFromUDP(buf)
	if err != nil {
		return 0, err
	}
	payload := buf[:n]
	if n == 0 || payload[n-1] != '\n' {
		payload = append(payload, '\n')
	}

	u.mu.Lock()
	u.peer = peer
	copied := copy(p, payload)
	if copied < len(payload) {
		u.leftover = append([]byte(nil), payload[copied:]...)
	}
	u.mu.Unlock()
	return copied, nil
}

// Write sends a command datagram to the last unit heard from.
func (u *UDPPort) Write(p []byte) (int, error) {
	u.mu.Lock()
	peer := u.peer
	u.mu.Unlock()
	if peer == nil {
		return 0, ErrNoPeer
	}
	return u.conn.WriteToUDP(p, peer)
}

// Close closes the underlying socket, unblocking any pending Read.
func (u *UDPPort) Close() error {
	return u.conn.Close()
}

// LocalAddr reports the bound listener address.
func (u *UDPPort) LocalAddr() net.Addr {
	return u.conn.LocalAddr()
}
