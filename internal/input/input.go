// Package input translates high-level browser input events into CDP
// dispatch calls, clamping coordinates to the current viewport.
package input

import (
	"github.com/chromedp/cdproto/input"

	"github.com/vibepilot/agentd/internal/cdp"
)

// Event is the wire shape of a browser:input payload. Only the fields
// relevant to Type are populated by the caller.
type Event struct {
	Type       string
	Text       string
	X, Y       float64
	Button     string
	ClickCount int
	DeltaX     float64
	DeltaY     float64
	Key        string
	Code       string
	Modifiers  int
}

// Handler clamps and dispatches Events against one cdp.Client.
type Handler struct {
	client       *cdp.Client
	viewportW    int
	viewportH    int
}

// New creates a Handler with the given initial viewport.
func New(client *cdp.Client, viewportW, viewportH int) *Handler {
	return &Handler{client: client, viewportW: viewportW, viewportH: viewportH}
}

// Resize updates the clamp bounds, called on browser:resize.
func (h *Handler) Resize(w, hgt int) {
	h.viewportW, h.viewportH = w, hgt
}

// Dispatch classifies ev and issues the corresponding CDP command. Unknown
// types are dropped silently, per design.
func (h *Handler) Dispatch(ev Event) error {
	switch ev.Type {
	case "insertText":
		return h.client.Run(input.InsertText(ev.Text))

	case "mousePressed", "mouseReleased", "mouseMoved", "mouseWheel":
		return h.dispatchMouse(ev)

	case "keyDown", "keyUp":
		return h.dispatchKey(ev)

	default:
		return nil
	}
}

func (h *Handler) dispatchMouse(ev Event) error {
	x, y := h.clamp(ev.X, ev.Y)

	var typ input.MouseType
	switch ev.Type {
	case "mousePressed":
		typ = input.MousePressed
	case "mouseReleased":
		typ = input.MouseReleased
	case "mouseMoved":
		typ = input.MouseMoved
	case "mouseWheel":
		typ = input.MouseWheel
	}

	cmd := input.DispatchMouseEvent(typ, x, y)
	if ev.Button != "" {
		cmd = cmd.WithButton(input.MouseButton(ev.Button))
	}
	if ev.ClickCount != 0 {
		cmd = cmd.WithClickCount(int64(ev.ClickCount))
	}
	if ev.DeltaX != 0 {
		cmd = cmd.WithDeltaX(ev.DeltaX)
	}
	if ev.DeltaY != 0 {
		cmd = cmd.WithDeltaY(ev.DeltaY)
	}
	return h.client.Run(cmd)
}

func (h *Handler) dispatchKey(ev Event) error {
	var typ input.KeyType
	switch ev.Type {
	case "keyDown":
		typ = input.KeyDown
	case "keyUp":
		typ = input.KeyUp
	}
	cmd := input.DispatchKeyEvent(typ).
		WithKey(ev.Key).
		WithCode(ev.Code).
		WithModifiers(input.Modifier(ev.Modifiers))
	return h.client.Run(cmd)
}

// clamp bounds (x, y) to [0, viewport] on each axis.
func (h *Handler) clamp(x, y float64) (float64, float64) {
	if x < 0 {
		x = 0
	}
	if x > float64(h.viewportW) {
		x = float64(h.viewportW)
	}
	if y < 0 {
		y = 0
	}
	if y > float64(h.viewportH) {
		y = float64(h.viewportH)
	}
	return x, y
}
