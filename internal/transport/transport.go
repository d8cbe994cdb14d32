// Package transport implements the swappable primary/secondary transport
// pointer that sits between the bus and the two underlying wire
// connections: a streaming socket (primary) and a peer data channel
// (secondary).
package transport

import (
	"fmt"
	"sync"
)

// WriteFn sends a single already-serialized frame over a transport.
type WriteFn func(data []byte) error

// Mode names which underlying transport is currently active.
type Mode int

const (
	// ModePrimary routes writes over the streaming socket.
	ModePrimary Mode = iota
	// ModePeer routes writes over the peer data channel.
	ModePeer
	// ModeDisconnected means neither transport can currently accept writes.
	ModeDisconnected
)

func (m Mode) String() string {
	switch m {
	case ModePrimary:
		return "primary"
	case ModePeer:
		return "peer"
	case ModeDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Swappable holds the two underlying write functions and an active-mode
// pointer. It is the only piece of mutable transport state handlers ever
// see — they call bus.Send, never a transport directly. The lock is held
// through the write call so a migration cannot interleave with one.
type Swappable struct {
	mu         sync.Mutex
	primary    WriteFn
	peer       WriteFn
	mode       Mode
	onFailover func(Mode)
}

// New creates a Swappable backed by the primary write function, active
// from the start.
func New(primary WriteFn) *Swappable {
	return &Swappable{primary: primary, mode: ModePrimary}
}

// OnFailover registers a callback invoked whenever the active mode
// changes, so callers can notify the peer of a migration without the
// Swappable knowing about message formats.
func (s *Swappable) OnFailover(fn func(Mode)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onFailover = fn
}

// Write sends data via whichever transport is currently active.
func (s *Swappable) Write(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.mode {
	case ModePeer:
		return s.peer(data)
	case ModePrimary:
		return s.primary(data)
	default:
		return fmt.Errorf("transport: no active connection")
	}
}

// MigrateToPeer installs peer as the secondary transport and promotes it
// active. Promotion happens after a successful handshake, per the caller's
// responsibility — MigrateToPeer itself does not validate the handshake.
func (s *Swappable) MigrateToPeer(peer WriteFn) {
	s.mu.Lock()
	s.peer = peer
	s.mode = ModePeer
	cb := s.onFailover
	s.mu.Unlock()
	if cb != nil {
		cb(ModePeer)
	}
}

// FallbackToPrimary demotes the peer transport and routes writes back
// through primary. Called when the peer connection dies, or on startup
// before any peer handshake has occurred.
func (s *Swappable) FallbackToPrimary() {
	s.mu.Lock()
	s.peer = nil
	s.mode = ModePrimary
	cb := s.onFailover
	s.mu.Unlock()
	if cb != nil {
		cb(ModePrimary)
	}
}

// Disconnect marks the transport as having no usable connection, e.g. when
// the primary socket closes and no peer channel has been promoted.
func (s *Swappable) Disconnect() {
	s.mu.Lock()
	s.mode = ModeDisconnected
	cb := s.onFailover
	s.mu.Unlock()
	if cb != nil {
		cb(ModeDisconnected)
	}
}

// ReplacePrimary installs a new primary write function, e.g. after a
// reconnect, and promotes it active, taking over from a promoted peer.
func (s *Swappable) ReplacePrimary(primary WriteFn) {
	s.mu.Lock()
	s.primary = primary
	changed := s.mode != ModePrimary
	s.mode = ModePrimary
	cb := s.onFailover
	s.mu.Unlock()
	if changed && cb != nil {
		cb(ModePrimary)
	}
}

// Current reports the active mode.
func (s *Swappable) Current() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}
