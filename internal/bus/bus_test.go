package bus

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

type recordingSender struct {
	mu     sync.Mutex
	frames [][]byte
}

func (s *recordingSender) Write(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, data)
	return nil
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func TestDispatchCallsHandlersInRegistrationOrder(t *testing.T) {
	r := New(&recordingSender{})
	var order []int
	var mu sync.Mutex
	r.On("terminal:input", func(payload json.RawMessage) {
		mu.Lock()
		order = append(order, 1)
		mu.Unlock()
	})
	r.On("terminal:input", func(payload json.RawMessage) {
		mu.Lock()
		order = append(order, 2)
		mu.Unlock()
	})

	r.Dispatch(Envelope{Type: "terminal:input"})

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("order = %v, want [1 2]", order)
	}
}

func TestDispatchOnlyCallsMatchingType(t *testing.T) {
	r := New(&recordingSender{})
	called := false
	r.On("terminal:output", func(payload json.RawMessage) { called = true })

	r.Dispatch(Envelope{Type: "tunnel:request"})

	if called {
		t.Fatalf("handler for a different type should not have been called")
	}
}

func TestSendEncodesEnvelopeAndDeliversToSender(t *testing.T) {
	sender := &recordingSender{}
	r := New(sender)

	if err := r.Send("browser:navigate", map[string]string{"url": "https://example.com"}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for sender.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if sender.count() != 1 {
		t.Fatalf("sender received %d frames, want 1", sender.count())
	}

	var env Envelope
	sender.mu.Lock()
	frame := sender.frames[0]
	sender.mu.Unlock()
	if err := json.Unmarshal(frame, &env); err != nil {
		t.Fatalf("decode sent frame: %v", err)
	}
	if env.Type != "browser:navigate" {
		t.Fatalf("Type = %q, want browser:navigate", env.Type)
	}
}

func TestDispatchRawDecodesAndRoutes(t *testing.T) {
	r := New(&recordingSender{})
	got := make(chan string, 1)
	r.On("tunnel:open", func(payload json.RawMessage) {
		got <- string(payload)
	})

	if err := r.DispatchRaw([]byte(`{"type":"tunnel:open","payload":{"tunnelId":"t1"}}`)); err != nil {
		t.Fatalf("DispatchRaw: %v", err)
	}

	select {
	case p := <-got:
		if p != `{"tunnelId":"t1"}` {
			t.Fatalf("payload = %s", p)
		}
	case <-time.After(time.Second):
		t.Fatalf("handler was not called")
	}
}

// gatedSender blocks every terminal:output write until release is closed,
// standing in for a slow consumer of that one type.
type gatedSender struct {
	recordingSender
	release chan struct{}
}

func (s *gatedSender) Write(data []byte) error {
	var env Envelope
	if json.Unmarshal(data, &env) == nil && env.Type == "terminal:output" {
		<-s.release
	}
	return s.recordingSender.Write(data)
}

func TestSlowOneTypeDoesNotBlockAnother(t *testing.T) {
	sender := &gatedSender{release: make(chan struct{})}
	r := New(sender)

	// terminal:output writes are held back by the sender; a tunnel:response
	// sent after them must still reach the sender first.
	for i := 0; i < 10; i++ {
		if err := r.Send("terminal:output", map[string]int{"i": i}); err != nil {
			t.Fatalf("Send terminal:output: %v", err)
		}
	}
	if err := r.Send("tunnel:response", map[string]string{"requestId": "r1"}); err != nil {
		t.Fatalf("Send tunnel:response: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for sender.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if sender.count() != 1 {
		t.Fatalf("sender received %d frames while terminal:output is blocked, want 1", sender.count())
	}
	var first Envelope
	sender.mu.Lock()
	firstFrame := sender.frames[0]
	sender.mu.Unlock()
	if err := json.Unmarshal(firstFrame, &first); err != nil {
		t.Fatalf("decode sent frame: %v", err)
	}
	if first.Type != "tunnel:response" {
		t.Fatalf("first frame Type = %q, want tunnel:response", first.Type)
	}

	close(sender.release)
	deadline = time.Now().Add(time.Second)
	for sender.count() < 11 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if sender.count() != 11 {
		t.Fatalf("sender received %d frames, want 11", sender.count())
	}
}
