package tunnel

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vibepilot/agentd/internal/errs"
)

func testServer(t *testing.T) (*httptest.Server, int) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Multi", "a")
		w.Header().Add("X-Multi", "b")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "pong")
	}))
	t.Cleanup(srv.Close)

	var port int
	fmt.Sscanf(srv.Listener.Addr().String(), "127.0.0.1:%d", &port)
	return srv, port
}

func TestOpenTwiceOnSameIdFails(t *testing.T) {
	p := New()
	if err := p.Open("t1", 18080, ""); err != nil {
		t.Fatalf("first Open: %v", err)
	}
	err := p.Open("t1", 18081, "")
	if err == nil {
		t.Fatalf("expected error on duplicate open")
	}
	if errs.KindOf(err) != errs.KindUser {
		t.Fatalf("kind = %v, want KindUser", errs.KindOf(err))
	}
}

func TestCloseUnknownIdIsNoop(t *testing.T) {
	p := New()
	p.Close("nonexistent")
}

func TestForwardOnClosedIdFails(t *testing.T) {
	p := New()
	_, err := p.Forward("never-opened", Request{Method: "GET", Path: "/"})
	if err == nil {
		t.Fatalf("expected error forwarding on unopened tunnel")
	}
}

func TestForwardRoundtripsAndFlattensHeaders(t *testing.T) {
	_, port := testServer(t)
	p := New()
	if err := p.Open("t1", port, ""); err != nil {
		t.Fatalf("Open: %v", err)
	}

	resp, err := p.Forward("t1", Request{RequestID: "r1", Method: "GET", Path: "/"})
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if resp.Status != 200 {
		t.Fatalf("Status = %d, want 200", resp.Status)
	}
	if resp.Headers["X-Multi"] != "a, b" {
		t.Fatalf("X-Multi = %q, want %q", resp.Headers["X-Multi"], "a, b")
	}
	if resp.Body == "" {
		t.Fatalf("expected non-empty base64 body")
	}
}

func TestForwardExceedsRateLimitFails(t *testing.T) {
	_, port := testServer(t)
	p := New()
	if err := p.Open("t1", port, ""); err != nil {
		t.Fatalf("Open: %v", err)
	}
	p.tunnels["t1"].limiter.SetBurst(1)

	if _, err := p.Forward("t1", Request{Method: "GET", Path: "/"}); err != nil {
		t.Fatalf("first forward should succeed: %v", err)
	}
	_, err := p.Forward("t1", Request{Method: "GET", Path: "/"})
	if err == nil {
		t.Fatalf("expected rate limit error on second immediate forward")
	}
	if errs.KindOf(err) != errs.KindTransient {
		t.Fatalf("kind = %v, want KindTransient", errs.KindOf(err))
	}
}

func TestCloseThenForwardFails(t *testing.T) {
	_, port := testServer(t)
	p := New()
	p.Open("t1", port, "")
	p.Close("t1")
	if _, err := p.Forward("t1", Request{Method: "GET", Path: "/"}); err == nil {
		t.Fatalf("expected error forwarding after close")
	}
}
