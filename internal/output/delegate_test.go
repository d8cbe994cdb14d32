package output

import (
	"bytes"
	"testing"
)

func TestAttachReplaysBufferedBytes(t *testing.T) {
	d := New(1 << 20)
	d.Handle([]byte("line1"))
	d.Handle([]byte("line2"))

	replayed := d.Attach(func(data []byte) error { return nil })
	if !bytes.Equal(replayed, []byte("line1line2")) {
		t.Fatalf("replayed = %q, want %q", replayed, "line1line2")
	}
}

func TestHandleForwardsLiveAfterAttach(t *testing.T) {
	d := New(1 << 20)
	d.Attach(func(data []byte) error { return nil })

	var got []byte
	d.Attach(func(data []byte) error {
		got = append(got, data...)
		return nil
	})
	d.Handle([]byte("line3"))

	if !bytes.Equal(got, []byte("line3")) {
		t.Fatalf("live forward = %q, want %q", got, "line3")
	}
}

func TestDetachBuffersWithoutLoss(t *testing.T) {
	d := New(1 << 20)
	var got []byte
	d.Attach(func(data []byte) error {
		got = append(got, data...)
		return nil
	})
	d.Handle([]byte("a"))
	d.Detach()
	d.Handle([]byte("b"))

	replayed := d.Attach(func(data []byte) error { return nil })
	if !bytes.Equal(replayed, []byte("b")) {
		t.Fatalf("replayed after detach = %q, want %q", replayed, "b")
	}
	if !bytes.Equal(got, []byte("a")) {
		t.Fatalf("sink saw = %q, want %q", got, "a")
	}
}

func TestSinkErrorDoesNotAbortDelegate(t *testing.T) {
	d := New(1 << 20)
	calls := 0
	d.Attach(func(data []byte) error {
		calls++
		return bytes.ErrTooLarge
	})
	d.Handle([]byte("x"))
	d.Handle([]byte("y"))
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}
