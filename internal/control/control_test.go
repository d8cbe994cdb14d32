package control

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vibepilot/agentd/internal/pty"
)

type fakeSessions struct {
	list    []pty.SessionInfo
	written map[string]string
	resized map[string][2]int
}

func (f *fakeSessions) List() []pty.SessionInfo { return f.list }

func (f *fakeSessions) Write(sessionID string, data []byte) error {
	if sessionID == "missing" {
		return errUnknown
	}
	if f.written == nil {
		f.written = make(map[string]string)
	}
	f.written[sessionID] = string(data)
	return nil
}

func (f *fakeSessions) Resize(sessionID string, cols, rows int) error {
	if sessionID == "missing" {
		return errUnknown
	}
	if f.resized == nil {
		f.resized = make(map[string][2]int)
	}
	f.resized[sessionID] = [2]int{cols, rows}
	return nil
}

var errUnknown = &testErr{"unknown session"}

type testErr struct{ msg string }

func (e *testErr) Error() string { return e.msg }

func setup(t *testing.T) (*fakeSessions, *Client, context.CancelFunc) {
	t.Helper()
	fs := &fakeSessions{list: []pty.SessionInfo{{SessionID: "s1", Cwd: "/tmp"}}}

	sock := filepath.Join(t.TempDir(), "agentd.sock")
	srv := NewServer(fs, func() StatusProvider {
		return StatusProvider{Sessions: len(fs.list), Tunnels: 2, BrowserOpen: true}
	}, sock)

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan struct{})
	go func() {
		go func() {
			for {
				if _, err := os.Stat(sock); err == nil {
					close(ready)
					return
				}
				time.Sleep(5 * time.Millisecond)
			}
		}()
		srv.ListenAndServe(ctx)
	}()

	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		cancel()
		t.Fatal("server did not start in time")
	}

	return fs, NewClient(sock), cancel
}

func TestStatusReturnsCounters(t *testing.T) {
	_, client, cancel := setup(t)
	defer cancel()

	st, err := client.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Sessions != 1 || st.Tunnels != 2 || !st.BrowserOpen {
		t.Fatalf("st = %+v", st)
	}
}

func TestListSessionsReturnsConfiguredList(t *testing.T) {
	_, client, cancel := setup(t)
	defer cancel()

	sessions, err := client.ListSessions()
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].SessionID != "s1" {
		t.Fatalf("sessions = %+v", sessions)
	}
}

func TestInputDeliversDataToSession(t *testing.T) {
	fs, client, cancel := setup(t)
	defer cancel()

	if err := client.Input("s1", []byte("echo hi\n")); err != nil {
		t.Fatalf("Input: %v", err)
	}
	if fs.written["s1"] != "echo hi\n" {
		t.Fatalf("written = %q", fs.written["s1"])
	}
}

func TestInputUnknownSessionFails(t *testing.T) {
	_, client, cancel := setup(t)
	defer cancel()

	if err := client.Input("missing", []byte("x")); err == nil {
		t.Fatalf("expected error for unknown session")
	}
}

func TestResizeDeliversDimensions(t *testing.T) {
	fs, client, cancel := setup(t)
	defer cancel()

	if err := client.Resize("s1", 100, 40); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if fs.resized["s1"] != [2]int{100, 40} {
		t.Fatalf("resized = %v", fs.resized["s1"])
	}
}
