// Package browser orchestrates the Chrome detector/profile manager, CDP
// client, screencast stream, input handler and cursor probe into a single
// running preview. At most one Session is ever running per agent.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/vibepilot/agentd/internal/cdp"
	"github.com/vibepilot/agentd/internal/chrome"
	"github.com/vibepilot/agentd/internal/cursor"
	"github.com/vibepilot/agentd/internal/errs"
	"github.com/vibepilot/agentd/internal/input"
	"github.com/vibepilot/agentd/internal/quality"
	"github.com/vibepilot/agentd/internal/screencast"
)

// State is the Session's lifecycle stage.
type State string

const (
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateError    State = "error"
)

// StartOptions configures a browser:start request.
type StartOptions struct {
	ProjectID string
	URL       string
	Width     int
	Height    int
	Quality   int
}

// Callbacks are invoked by the Session as events occur; each corresponds to
// an outbound wire message the caller (the message bus glue) is
// responsible for serializing and sending.
type Callbacks struct {
	OnFrame     func(screencast.Frame)
	OnStarted   func(viewportW, viewportH int)
	OnNavigated func(url, title string)
	OnCursor    func(cursor string)
	OnStopped   func()
	OnError     func(err error)
}

// Session is the C9 coordinator: three independent streams (screencast,
// input, cursor probe) sharing one CDP connection and a state machine, not
// a nested pipeline.
type Session struct {
	profiles *chrome.ProfileManager
	callbacks Callbacks

	mu        sync.Mutex
	state     State
	cdpClient *cdp.Client
	stream    *screencast.Stream
	inputH    *input.Handler
	probe     *cursor.Probe
	qc        *quality.Controller
	viewportW int
	viewportH int
	url       string
	title     string
}

// New creates a Session that resolves Chrome profiles under profiles and
// reports events through cb.
func New(profiles *chrome.ProfileManager, cb Callbacks) *Session {
	return &Session{profiles: profiles, callbacks: cb, state: StateIdle}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start resolves Chrome, reclaims any stale singleton lock, launches it
// under the project's profile, connects CDP, configures the viewport, and
// attaches the screencast/input/cursor streams.
func (s *Session) Start(ctx context.Context, opts StartOptions) error {
	s.mu.Lock()
	if s.state == StateStarting || s.state == StateRunning {
		s.mu.Unlock()
		return errs.User("browser session already starting or running")
	}
	s.state = StateStarting
	s.mu.Unlock()

	execPath := chrome.Detect()
	if execPath == "" {
		return s.fail(errs.Resource("chrome executable not found"))
	}

	profileDir, err := s.profiles.ProfilePath(opts.ProjectID)
	if err != nil {
		return s.fail(err)
	}
	if err := chrome.ClearStaleLock(profileDir); err != nil {
		return s.fail(errs.Resourcef("clear stale chrome lock", err))
	}

	width, height := opts.Width, opts.Height
	if width == 0 {
		width = 1280
	}
	if height == 0 {
		height = 720
	}

	client, err := cdp.Launch(ctx, cdp.LaunchOptions{
		ExecPath:   execPath,
		ProfileDir: profileDir,
		Headless:   true,
		WindowW:    width,
		WindowH:    height,
	})
	if err != nil {
		return s.fail(err)
	}

	if err := client.Run(emulation.SetDeviceMetricsOverride(int64(width), int64(height), 1, false)); err != nil {
		client.Close()
		return s.fail(err)
	}

	qc := quality.New()
	s.mu.Lock()
	s.cdpClient = client
	s.qc = qc
	s.inputH = input.New(client, width, height)
	s.probe = cursor.New(client)
	s.viewportW, s.viewportH = width, height
	s.stream = screencast.New(client, s.onFrame)
	s.state = StateRunning
	s.mu.Unlock()

	client.ListenTarget(func(ev any) {
		nav, ok := ev.(*page.EventFrameNavigated)
		if !ok || nav.Frame == nil || nav.Frame.ParentID != "" {
			return
		}
		go s.recordNavigation(nav.Frame.URL)
	})

	if opts.URL != "" {
		if err := client.Run(page.Navigate(opts.URL)); err != nil {
			return s.fail(err)
		}
	}

	if err := s.stream.Start(screencast.Options{Quality: opts.Quality, MaxWidth: width, MaxHeight: height}); err != nil {
		return s.fail(err)
	}

	if s.callbacks.OnStarted != nil {
		s.callbacks.OnStarted(width, height)
	}
	return nil
}

// onFrame is the screencast.Stream callback: feed its latency into the
// adaptive quality controller, forward it to the bus, and — if the
// controller flips shouldRestart — stop/start the screencast (never the
// browser) at the new quality.
func (s *Session) onFrame(f screencast.Frame) {
	s.mu.Lock()
	qc := s.qc
	stream := s.stream
	s.mu.Unlock()
	if qc == nil || stream == nil {
		return
	}

	latencyMs := int(time.Since(time.Unix(0, int64(f.Timestamp*float64(time.Second)))) / time.Millisecond)
	qc.Sample(quality.Clamp(latencyMs))

	if s.callbacks.OnFrame != nil {
		s.callbacks.OnFrame(f)
	}

	s.maybeRestartScreencast(qc, stream)
}

// FrameAck feeds a client-reported round-trip latency (browser:frame-ack)
// into the adaptive quality controller, in addition to the server-side
// estimate onFrame already samples. A no-op once the session is not
// running.
func (s *Session) FrameAck(latencyMs int) {
	s.mu.Lock()
	qc := s.qc
	stream := s.stream
	s.mu.Unlock()
	if qc == nil || stream == nil {
		return
	}
	qc.Sample(quality.Clamp(latencyMs))
	s.maybeRestartScreencast(qc, stream)
}

// maybeRestartScreencast stops and restarts the screencast at the
// controller's new quality if a full window has tripped shouldRestart. The
// browser itself is never re-launched.
func (s *Session) maybeRestartScreencast(qc *quality.Controller, stream *screencast.Stream) {
	if !qc.ShouldRestart() {
		return
	}
	newQuality := qc.Quality()
	_ = stream.Stop()
	s.mu.Lock()
	w, h := s.viewportW, s.viewportH
	s.mu.Unlock()
	_ = stream.Start(screencast.Options{Quality: newQuality, MaxWidth: w, MaxHeight: h})
}

// Input gates dispatch by state: only a running session accepts input.
// Mouse-move coordinates become the cursor probe's next target.
func (s *Session) Input(ev input.Event) error {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return errs.User("browser session not running")
	}
	handler := s.inputH
	probe := s.probe
	s.mu.Unlock()

	if ev.Type == "mouseMoved" && probe != nil {
		if cursorVal, changed := probe.At(ev.X, ev.Y); changed && s.callbacks.OnCursor != nil {
			s.callbacks.OnCursor(cursorVal)
		}
	}
	return handler.Dispatch(ev)
}

// Navigate issues Page.navigate.
func (s *Session) Navigate(url string) error {
	s.mu.Lock()
	client := s.cdpClient
	s.mu.Unlock()
	if client == nil {
		return errs.User("browser session not running")
	}
	if err := client.Run(page.Navigate(url)); err != nil {
		return err
	}
	s.recordNavigation(url)
	return nil
}

// recordNavigation fetches the page title for url, updates the session's
// navigation state, stamps it onto the screencast stream, and fires
// OnNavigated. Called both from an explicit Navigate and from the
// frameNavigated listener registered in Start, so in-page navigation (a
// clicked link, a client-side redirect) is reported too.
func (s *Session) recordNavigation(url string) {
	s.mu.Lock()
	client := s.cdpClient
	stream := s.stream
	s.mu.Unlock()
	if client == nil {
		return
	}

	var title string
	if err := client.Run(chromedp.Title(&title)); err != nil {
		title = ""
	}

	s.mu.Lock()
	s.url = url
	s.title = title
	s.mu.Unlock()

	if stream != nil {
		stream.SetPage(url, title)
	}
	if s.callbacks.OnNavigated != nil {
		s.callbacks.OnNavigated(url, title)
	}
}

// Resize updates the input handler's clamp bounds and issues
// Emulation.setDeviceMetricsOverride.
func (s *Session) Resize(w, h int) error {
	s.mu.Lock()
	client := s.cdpClient
	handler := s.inputH
	s.viewportW, s.viewportH = w, h
	s.mu.Unlock()
	if client == nil {
		return errs.User("browser session not running")
	}
	if handler != nil {
		handler.Resize(w, h)
	}
	return client.Run(emulation.SetDeviceMetricsOverride(int64(w), int64(h), 1, false))
}

// Stop stops the screencast, closes CDP, kills the browser, and returns to
// idle.
func (s *Session) Stop() error {
	s.mu.Lock()
	stream := s.stream
	client := s.cdpClient
	s.stream = nil
	s.cdpClient = nil
	s.state = StateIdle
	s.mu.Unlock()

	if stream != nil {
		_ = stream.Stop()
	}
	var err error
	if client != nil {
		if cerr := client.Close(); cerr != nil {
			err = fmt.Errorf("close cdp client: %w", cerr)
		}
	}
	if s.callbacks.OnStopped != nil {
		s.callbacks.OnStopped()
	}
	return err
}

func (s *Session) fail(err error) error {
	s.mu.Lock()
	s.state = StateError
	s.mu.Unlock()
	if s.callbacks.OnError != nil {
		s.callbacks.OnError(err)
	}
	return err
}
