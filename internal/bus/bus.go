// Package bus implements the typed message router: per-type handler
// registration and per-type outbound channels, each drained by its own
// writer goroutine, so a slow consumer of one message type cannot starve
// another.
package bus

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/vibepilot/agentd/internal/errs"
)

// Envelope wraps every frame with a type field used for routing, mirroring
// the relay protocol's envelope shape.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Handler processes one dispatched payload for a registered type.
type Handler func(payload json.RawMessage)

// chanSize is the per-type outbound buffer depth. Generous enough that a
// burst of terminal:output frames doesn't block the producer while the
// writer goroutine drains it.
const chanSize = 256

// Sender writes one already-serialized frame to the active transport. The
// bus never constructs transports itself; Router is handed one at
// construction.
type Sender interface {
	Write(data []byte) error
}

// Router dispatches inbound frames to per-type handlers in registration
// order, and serializes outbound sends through one channel per message
// type, each drained by its own writer goroutine.
type Router struct {
	sender Sender

	mu       sync.Mutex
	handlers map[string][]Handler
	outbound map[string]chan []byte
}

// New creates a Router that writes outbound frames through sender.
func New(sender Sender) *Router {
	return &Router{
		sender:   sender,
		handlers: make(map[string][]Handler),
		outbound: make(map[string]chan []byte),
	}
}

// On registers h for msgType. Registration is side-effect-free: it only
// appends to the handler set, dispatched later in insertion order.
func (r *Router) On(msgType string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[msgType] = append(r.handlers[msgType], h)
}

// Dispatch routes an inbound envelope to every handler registered for its
// type, in registration order. A panic raised by one handler is recovered
// and logged, and the remaining handlers still run.
func (r *Router) Dispatch(env Envelope) {
	r.mu.Lock()
	hs := append([]Handler(nil), r.handlers[env.Type]...)
	r.mu.Unlock()
	for _, h := range hs {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					slog.Error("bus handler panic", "type", env.Type, "panic", rec)
				}
			}()
			h(env.Payload)
		}()
	}
}

// DispatchRaw unmarshals data as an Envelope and routes it.
func (r *Router) DispatchRaw(data []byte) error {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return errs.Userf("decode envelope", err)
	}
	r.Dispatch(env)
	return nil
}

// Send serializes payload under msgType and enqueues it on that type's
// outbound channel, starting a writer goroutine for the type on first use.
// Components call Send without ever touching the transport directly.
func (r *Router) Send(msgType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return errs.Userf("encode payload", err)
	}
	frame, err := json.Marshal(Envelope{Type: msgType, Payload: raw})
	if err != nil {
		return errs.Userf("encode envelope", err)
	}

	ch := r.channelFor(msgType)
	ch <- frame
	return nil
}

func (r *Router) channelFor(msgType string) chan []byte {
	r.mu.Lock()
	ch, ok := r.outbound[msgType]
	if !ok {
		ch = make(chan []byte, chanSize)
		r.outbound[msgType] = ch
		go r.writeLoop(ch)
	}
	r.mu.Unlock()
	return ch
}

func (r *Router) writeLoop(ch chan []byte) {
	for frame := range ch {
		_ = r.sender.Write(frame)
	}
}
