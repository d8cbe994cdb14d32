package input

import "testing"

func TestClampBoundsToViewport(t *testing.T) {
	h := New(nil, 800, 600)

	x, y := h.clamp(-10, -10)
	if x != 0 || y != 0 {
		t.Fatalf("clamp(-10,-10) = (%v,%v), want (0,0)", x, y)
	}

	x, y = h.clamp(1000, 900)
	if x != 800 || y != 600 {
		t.Fatalf("clamp(1000,900) = (%v,%v), want (800,600)", x, y)
	}

	x, y = h.clamp(400, 300)
	if x != 400 || y != 300 {
		t.Fatalf("clamp(400,300) = (%v,%v), want (400,300)", x, y)
	}
}

func TestResizeUpdatesClampBounds(t *testing.T) {
	h := New(nil, 800, 600)
	h.Resize(1024, 768)
	x, y := h.clamp(1000, 700)
	if x != 1000 || y != 700 {
		t.Fatalf("clamp after resize = (%v,%v), want (1000,700)", x, y)
	}
}

func TestDispatchDropsUnknownTypeSilently(t *testing.T) {
	h := New(nil, 800, 600)
	if err := h.Dispatch(Event{Type: "somethingUnknown"}); err != nil {
		t.Fatalf("Dispatch(unknown) = %v, want nil", err)
	}
}
