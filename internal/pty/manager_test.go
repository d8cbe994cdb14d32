package pty

import (
	"testing"
	"time"

	"github.com/vibepilot/agentd/internal/errs"
)

func TestCreateRejectsDisallowedShell(t *testing.T) {
	m := New(nil)
	_, err := m.Create("X", CreateOptions{Shell: "/evil/sh"})
	if err == nil {
		t.Fatalf("expected error for disallowed shell")
	}
	if errs.KindOf(err) != errs.KindUser {
		t.Fatalf("kind = %v, want KindUser", errs.KindOf(err))
	}
	if m.HasSession("X") {
		t.Fatalf("no process should have been spawned")
	}
}

func TestDestroyIsIdempotent(t *testing.T) {
	m := New(nil)
	if err := m.Destroy("nonexistent"); err != nil {
		t.Fatalf("Destroy(unknown) = %v, want nil", err)
	}
	if err := m.Destroy("nonexistent"); err != nil {
		t.Fatalf("Destroy(unknown) second call = %v, want nil", err)
	}
}

func TestCreateWriteDestroyRoundtrip(t *testing.T) {
	m := New(nil)
	sess, err := m.Create("S1", CreateOptions{Shell: "/bin/sh", Cols: 80, Rows: 24})
	if err != nil {
		t.Skipf("pty unavailable in this environment: %v", err)
	}
	if sess.PID == 0 {
		t.Fatalf("expected non-zero pid")
	}
	if !m.HasSession("S1") {
		t.Fatalf("expected session S1 to be tracked")
	}

	var got []byte
	done := make(chan struct{})
	m.AttachOutput("S1", func(data []byte) error {
		got = append(got, data...)
		if len(got) > 0 {
			select {
			case <-done:
			default:
				close(done)
			}
		}
		return nil
	})

	if err := m.Write("S1", []byte("echo hi\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}

	if err := m.Destroy("S1"); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if err := m.Destroy("S1"); err != nil {
		t.Fatalf("second Destroy should still be nil: %v", err)
	}
}

func TestCreateDuplicateSessionIDFails(t *testing.T) {
	m := New(nil)
	_, err := m.Create("dup", CreateOptions{Shell: "/bin/sh"})
	if err != nil {
		t.Skipf("pty unavailable in this environment: %v", err)
	}
	_, err = m.Create("dup", CreateOptions{Shell: "/bin/sh"})
	if err == nil {
		t.Fatalf("expected error creating duplicate session id")
	}
	m.Destroy("dup")
}
