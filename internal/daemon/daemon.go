// Package daemon wires the PTY manager, browser session, tunnel proxy,
// image receiver, file tree, and message bus together behind the primary
// websocket / secondary data-channel transport, and owns the process
// lifecycle (signal handling, config hot-reload, control socket).
package daemon

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	pionwebrtc "github.com/pion/webrtc/v4"

	"github.com/vibepilot/agentd/internal/browser"
	"github.com/vibepilot/agentd/internal/bus"
	"github.com/vibepilot/agentd/internal/chrome"
	"github.com/vibepilot/agentd/internal/config"
	"github.com/vibepilot/agentd/internal/control"
	"github.com/vibepilot/agentd/internal/errs"
	"github.com/vibepilot/agentd/internal/filetree"
	"github.com/vibepilot/agentd/internal/image"
	"github.com/vibepilot/agentd/internal/logger"
	"github.com/vibepilot/agentd/internal/persistence"
	"github.com/vibepilot/agentd/internal/pty"
	"github.com/vibepilot/agentd/internal/screencast"
	"github.com/vibepilot/agentd/internal/transport"
	"github.com/vibepilot/agentd/internal/tunnel"
	"github.com/vibepilot/agentd/internal/webrtc"
)

// Daemon owns every long-lived subsystem for one agent process.
type Daemon struct {
	cfg *config.Manager

	router  *bus.Router
	sw      *transport.Swappable
	peers   *webrtc.PeerManager
	pty     *pty.Manager
	persist *persistence.Manager
	browser *browser.Session
	tunnels *tunnel.Proxy
	images  *image.Receiver
	control *control.Server

	mu            sync.Mutex
	trees         map[string]*filetree.Tree
	activeProject string
}

// New constructs a Daemon from the config document at cfgPath.
func New(cfgPath string) (*Daemon, error) {
	if err := logger.Init(os.Getenv("LOG_LEVEL"), ""); err != nil {
		return nil, errs.Resourcef("init logger", err)
	}

	cfgMgr := config.NewManager(cfgPath)
	doc := cfgMgr.Current()

	userDir, err := config.UserConfigDir()
	if err != nil {
		return nil, errs.Resourcef("resolve user config dir", err)
	}
	profiles := chrome.NewProfileManager(filepath.Join(userDir, "chrome-profiles"))

	images, err := image.New()
	if err != nil {
		return nil, err
	}

	d := &Daemon{
		cfg:     cfgMgr,
		tunnels: tunnel.New(),
		images:  images,
		trees:   make(map[string]*filetree.Tree),
		peers:   webrtc.NewPeerManager(nil),
	}

	d.sw = transport.New(func([]byte) error { return errs.Transient("no transport connected") })
	d.sw.OnFailover(func(mode transport.Mode) {
		logger.Info("transport failover", "mode", mode.String())
		if mode != transport.ModeDisconnected {
			return
		}
		for _, s := range d.pty.List() {
			if s.Exited {
				continue
			}
			d.persist.Orphan(s.SessionID, s.Cwd)
		}
	})
	d.router = bus.New(d.sw)

	d.pty = pty.New(func(sessionID string, exitCode int) {
		if d.persist.IsOrphaned(sessionID) {
			d.persist.HandleOrphanedExit(sessionID)
			return
		}
		d.router.Send("terminal:destroyed", map[string]any{"sessionId": sessionID, "exitCode": exitCode})
	})

	timeout := time.Duration(doc.Server.SessionTimeout) * time.Second
	d.persist = persistence.New(timeout, func(sessionID string) {
		d.pty.Destroy(sessionID)
	}, func(sessionID string) {
		d.router.Send("terminal:destroyed", map[string]any{"sessionId": sessionID})
	})

	d.browser = browser.New(profiles, browser.Callbacks{
		OnFrame: func(f screencast.Frame) {
			d.router.Send("browser:frame", map[string]any{
				"data": f.Data,
				"metadata": map[string]any{
					"pageUrl":   f.PageURL,
					"pageTitle": f.PageTitle,
					"timestamp": f.Timestamp,
				},
			})
		},
		OnStarted: func(w, h int) {
			d.router.Send("browser:started", map[string]any{"viewportWidth": w, "viewportHeight": h})
		},
		OnNavigated: func(url, title string) {
			d.router.Send("browser:navigated", map[string]any{"url": url, "title": title})
		},
		OnCursor: func(cursor string) {
			d.router.Send("browser:cursor", map[string]any{"cursor": cursor})
		},
		OnStopped: func() {
			d.router.Send("browser:stopped", map[string]any{})
		},
		OnError: func(err error) {
			d.router.Send("browser:error", map[string]any{"error": err.Error()})
		},
	})

	d.peers.OnDC(func(dc *pionwebrtc.DataChannel) {
		d.sw.MigrateToPeer(func(data []byte) error {
			return dc.Send(data)
		})
		dc.OnMessage(func(msg pionwebrtc.DataChannelMessage) {
			if err := d.router.DispatchRaw(msg.Data); err != nil {
				logger.Warn("dispatch peer frame", "err", err)
			}
		})
		dc.OnClose(func() {
			d.sw.FallbackToPrimary()
		})
	})

	d.control = control.NewServer(d.pty, d.status, filepath.Join(userDir, "control.sock"))

	d.registerHandlers()
	return d, nil
}

// status satisfies control.Server's StatusProvider callback.
func (d *Daemon) status() control.StatusProvider {
	return control.StatusProvider{
		Sessions:    len(d.pty.List()),
		Tunnels:     d.tunnels.OpenCount(),
		BrowserOpen: d.browser.State() == browser.StateRunning,
	}
}

// Run starts the config watcher, the control socket, and the primary
// websocket listener, blocking until ctx is cancelled or SIGINT/SIGTERM is
// received, at which point it destroys all sessions and returns.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.cfg.Watch(); err != nil {
		logger.Warn("config hot-reload disabled", "err", err)
	}
	defer d.cfg.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 2)
	go func() { errCh <- d.control.ListenAndServe(ctx) }()

	doc := d.cfg.Current()
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", d.handleUpgrade)
	mux.HandleFunc("/webrtc/offer", d.handleWebRTCOffer)
	srv := &http.Server{Addr: fmt.Sprintf(":%d", doc.Server.Port), Handler: mux}
	go func() {
		logger.Info("agentd listening", "port", doc.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			logger.Error("daemon error", "err", err)
		}
	case <-ctx.Done():
	}

	cancel()
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutCancel()
	srv.Shutdown(shutCtx)

	d.pty.DestroyAll()
	d.persist.DestroyAll()
	d.browser.Stop()
	d.peers.Close()
	return nil
}

func (d *Daemon) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	doc := d.cfg.Current()
	opts := transport.AcceptOptions{AuthMode: doc.Auth.Mode, AuthSecret: doc.Auth.Token}
	if err := transport.Accept(w, r, opts, d.sw, func(data []byte) {
		if err := d.router.DispatchRaw(data); err != nil {
			logger.Warn("dispatch inbound frame", "err", err)
		}
	}); err != nil {
		logger.Warn("accept websocket", "err", err)
	}
}

// handleWebRTCOffer accepts a browser's SDP offer over a plain HTTP POST,
// returning the answer SDP. The data channel becomes the secondary
// transport once it opens (see the OnDC wiring in New).
func (d *Daemon) handleWebRTCOffer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	answer, err := d.peers.HandleOffer(string(body))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/sdp")
	w.Write([]byte(answer))
}

// treeFor returns (creating if necessary) the filetree.Tree rooted at the
// active project's path, or the process working directory if no project
// is configured.
func (d *Daemon) treeFor(projectID string) (*filetree.Tree, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.trees[projectID]; ok {
		return t, nil
	}
	root := projectID
	if root == "" {
		wd, _ := os.Getwd()
		root = wd
	} else {
		for _, p := range d.cfg.Current().Projects {
			if p.Name == projectID {
				root = p.Path
				break
			}
		}
	}
	t, err := filetree.New(root)
	if err != nil {
		return nil, err
	}
	d.trees[projectID] = t
	return t, nil
}

func (d *Daemon) activeTree() (*filetree.Tree, error) {
	d.mu.Lock()
	active := d.activeProject
	d.mu.Unlock()
	return d.treeFor(active)
}
