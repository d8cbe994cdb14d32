package cursor

import "testing"

func TestAtDedupsIdenticalValues(t *testing.T) {
	p := &Probe{eval: func(x, y float64) string { return "pointer" }}

	v, changed := p.At(1, 1)
	if !changed || v != "pointer" {
		t.Fatalf("first probe = (%q,%v), want (pointer,true)", v, changed)
	}

	v, changed = p.At(1, 1)
	if changed || v != "" {
		t.Fatalf("second identical probe = (%q,%v), want (\"\",false)", v, changed)
	}
}

func TestAtReportsChange(t *testing.T) {
	calls := []string{"pointer", "text"}
	i := 0
	p := &Probe{eval: func(x, y float64) string {
		v := calls[i]
		i++
		return v
	}}

	p.At(0, 0)
	v, changed := p.At(0, 0)
	if !changed || v != "text" {
		t.Fatalf("changed probe = (%q,%v), want (text,true)", v, changed)
	}
}

func TestAtFailingEvaluateYieldsDefault(t *testing.T) {
	p := &Probe{eval: func(x, y float64) string { return defaultCursor }}
	v, changed := p.At(0, 0)
	if !changed || v != "default" {
		t.Fatalf("failing probe = (%q,%v), want (default,true)", v, changed)
	}
}
