// Package output implements the output delegate: a stable producer-side
// handle that either forwards bytes live to an attached sink or buffers
// them for replay on the next attach.
package output

import (
	"sync"

	"github.com/vibepilot/agentd/internal/buffer"
)

// Sink receives bytes produced by the delegate's owner (a PTY, typically).
// A sink that returns an error does not stop the delegate — the delegate
// discards the error; handling it is the sink's (the caller's) concern,
// never the delegate's.
type Sink func(data []byte) error

// Delegate is bound to exactly one producer for its lifetime. The producer
// calls Handle on every byte chunk it produces; Handle is a permanent
// closure shape, never re-bound. Consumers come and go via Attach/Detach.
type Delegate struct {
	mu  sync.Mutex
	buf *buffer.Ring
	sink Sink
}

// New creates a Delegate whose buffer (used while no sink is attached) holds
// up to capacity bytes.
func New(capacity int) *Delegate {
	return &Delegate{buf: buffer.New(capacity)}
}

// Handle is called by the producer for every chunk of output. If a sink is
// attached it is forwarded immediately; otherwise the chunk is appended to
// the ring buffer for the next Attach to replay. Held under the same lock
// as Attach/Detach so a chunk produced concurrently with an Attach lands on
// exactly one side of the handoff, never both or neither.
func (d *Delegate) Handle(data []byte) {
	d.mu.Lock()
	sink := d.sink
	if sink == nil {
		d.buf.Write(data)
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()
	// Sink errors are swallowed here by design — see Sink's doc comment.
	_ = sink(data)
}

// Attach drains the buffer built up since the previous Attach (or since
// construction) and returns it so the new consumer can replay everything it
// missed, then installs sink as the live forwarding target.
func (d *Delegate) Attach(sink Sink) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sink = sink
	return d.buf.Drain()
}

// Detach clears the sink. The handler keeps running — subsequent output is
// buffered, not dropped.
func (d *Delegate) Detach() {
	d.mu.Lock()
	d.sink = nil
	d.mu.Unlock()
}
