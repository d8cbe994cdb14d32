// Package screencast drives a CDP screencast: start/stop, per-frame
// acknowledgement, and re-emission of frames to the message bus.
package screencast

import (
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"

	"github.com/vibepilot/agentd/internal/cdp"
	"github.com/vibepilot/agentd/internal/errs"

	"golang.org/x/time/rate"
)

// Frame is a screencast frame re-emitted upward to the bus.
type Frame struct {
	Data      string // base64 JPEG
	PageURL   string
	PageTitle string
	Timestamp float64
}

// Options configures a screencast session.
type Options struct {
	Quality   int
	MaxWidth  int
	MaxHeight int
}

const (
	defaultQuality   = 70
	defaultMaxWidth  = 1280
	defaultMaxHeight = 720

	// framesPerSecond and burst bound how fast frames are handed to the
	// bus, independent of the CDP ack — a pathologically fast page must
	// not be allowed to flood the transport even though Chrome itself is
	// happy to keep emitting frames as soon as each is acked.
	framesPerSecond = 30
	frameBurst       = 30
)

// Stream owns the running/stopped state of one screencast on one cdp.Client.
type Stream struct {
	client *cdp.Client
	emit   func(Frame)

	mu         sync.Mutex
	running    bool
	subscribed bool
	limiter    *rate.Limiter
	pageURL    string
	pageTitle  string
}

// SetPage updates the page URL/title stamped onto subsequently emitted
// frames. The browser session calls this whenever navigation completes,
// since the screencast has no CDP navigation awareness of its own.
func (s *Stream) SetPage(url, title string) {
	s.mu.Lock()
	s.pageURL = url
	s.pageTitle = title
	s.mu.Unlock()
}

// New creates a Stream bound to client; emit is called for every frame that
// survives the rate limiter.
func New(client *cdp.Client, emit func(Frame)) *Stream {
	return &Stream{
		client:  client,
		emit:    emit,
		limiter: rate.NewLimiter(rate.Limit(framesPerSecond), frameBurst),
	}
}

// Start subscribes to screencastFrame events (on its first call only; later
// calls reuse that listener) and issues Page.startScreencast. Calling Start
// while already running is a no-op.
func (s *Stream) Start(opts Options) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	subscribe := !s.subscribed
	s.subscribed = true
	s.mu.Unlock()

	if opts.Quality == 0 {
		opts.Quality = defaultQuality
	}
	if opts.MaxWidth == 0 {
		opts.MaxWidth = defaultMaxWidth
	}
	if opts.MaxHeight == 0 {
		opts.MaxHeight = defaultMaxHeight
	}

	if subscribe {
		s.client.ListenTarget(func(ev any) {
			frame, ok := ev.(*page.EventScreencastFrame)
			if !ok {
				return
			}
			s.onFrame(frame)
		})
	}

	cmd := page.StartScreencast().
		WithFormat(page.ScreencastFormatJpeg).
		WithQuality(int64(opts.Quality)).
		WithMaxWidth(int64(opts.MaxWidth)).
		WithMaxHeight(int64(opts.MaxHeight)).
		WithEveryNthFrame(1)

	if err := s.client.Run(cmd); err != nil {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Stream) onFrame(frame *page.EventScreencastFrame) {
	s.mu.Lock()
	running := s.running
	pageURL := s.pageURL
	pageTitle := s.pageTitle
	s.mu.Unlock()
	if !running {
		return
	}

	// Ack immediately and unconditionally — the ack is the back-pressure
	// signal Chrome itself waits on, and it must never be delayed by our
	// own transport's speed (see frame-rate limiting below).
	ackErr := s.client.Run(page.ScreencastFrameAck(frame.SessionID))
	_ = ackErr // a TransientError here just costs one missed ack; it is discarded.

	if !s.limiter.Allow() {
		return
	}

	var ts float64
	if frame.Metadata != nil {
		ts = frame.Metadata.Timestamp
	}

	s.emit(Frame{
		Data:      frame.Data,
		PageURL:   pageURL,
		PageTitle: pageTitle,
		Timestamp: ts,
	})
}

// Stop clears the running flag and issues Page.stopScreencast. The frame
// listener stays registered; frames arriving while stopped are ignored.
// Calling Stop while not running is a no-op.
func (s *Stream) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	if err := s.client.Run(page.StopScreencast()); err != nil {
		return errs.Transientf("stop screencast", err)
	}
	return nil
}

// Running reports whether the screencast is currently active.
func (s *Stream) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// frameLatency computes the latency between a frame's CDP timestamp
// (seconds since epoch, per the Page domain) and now, clamped by the
// caller (see the quality package) before being fed to the adaptive
// quality controller.
func frameLatency(frameTimestamp float64, now time.Time) int {
	frameTime := time.Unix(0, int64(frameTimestamp*float64(time.Second)))
	return int(now.Sub(frameTime) / time.Millisecond)
}
