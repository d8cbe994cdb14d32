package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/vibepilot/agentd/internal/auth"
)

func TestAcceptRejectsMissingBearerToken(t *testing.T) {
	sw := New(func(data []byte) error { return nil })
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := Accept(w, r, AcceptOptions{AuthMode: "token", AuthSecret: "s3cret"}, sw, nil)
		if err == nil {
			t.Errorf("expected Accept to reject a missing bearer token")
		}
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestAcceptWithValidTokenUpgradesAndRoutesFrames(t *testing.T) {
	sw := New(func(data []byte) error { return nil })
	received := make(chan []byte, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := Accept(w, r, AcceptOptions{AuthMode: "token", AuthSecret: "s3cret"}, sw, func(data []byte) {
			received <- data
		}); err != nil {
			t.Errorf("Accept: %v", err)
		}
	}))
	defer srv.Close()

	token, err := auth.Issue("s3cret", "dev-machine", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	ctx := context.Background()
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, _, err := websocket.Dial(ctx, "ws"+srv.URL[len("http"):], &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"type":"terminal:input"}`)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	select {
	case data := <-received:
		if string(data) != `{"type":"terminal:input"}` {
			t.Fatalf("received = %s", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("onFrame was not called")
	}

	if sw.Current() != ModePrimary {
		t.Fatalf("Current = %v, want ModePrimary", sw.Current())
	}
	if err := sw.Write([]byte("hello")); err != nil {
		t.Fatalf("Write via Swappable: %v", err)
	}
}
