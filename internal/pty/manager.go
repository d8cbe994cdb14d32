// Package pty implements the PTY session manager: shell spawn under an
// allow-list, write/resize/destroy, and an output delegate per session.
package pty

import (
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"

	"github.com/vibepilot/agentd/internal/errs"
	"github.com/vibepilot/agentd/internal/output"
)

// allowedShells is the fixed set of shells create may spawn. Anything else
// is rejected with errs.User("Shell not allowed") before a process is ever
// started.
var allowedShells = map[string]bool{
	"/bin/bash":             true,
	"/bin/zsh":              true,
	"/bin/sh":               true,
	"/usr/bin/bash":         true,
	"/usr/bin/zsh":          true,
	"/usr/local/bin/bash":   true,
	"/usr/local/bin/zsh":    true,
}

const replayCapacity = 2 * 1024 * 1024 // 2MB, matches the bound used for terminal output elsewhere in this family of daemons.

// CreateOptions configures a new session. Zero values take the documented
// defaults.
type CreateOptions struct {
	Cols  int
	Rows  int
	Cwd   string
	Shell string
}

// Session is one spawned shell and its output delegate.
type Session struct {
	ID       string
	PID      int
	Cols     int
	Rows     int
	Cwd      string
	Shell    string
	Output   *output.Delegate

	ptmx     *os.File
	cmd      *exec.Cmd
	mu       sync.Mutex
	exited   bool
	exitCode int
}

// Exited reports whether the shell has exited, and its exit code if so.
func (s *Session) Exited() (bool, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exited, s.exitCode
}

// Manager owns the set of live PTY sessions for one agent.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	onExit   func(sessionID string, exitCode int)
}

// New creates an empty Manager. onExit, if non-nil, fires exactly once per
// session when its shell exits (including via Destroy, for sessions that
// were still attached).
func New(onExit func(sessionID string, exitCode int)) *Manager {
	return &Manager{sessions: make(map[string]*Session), onExit: onExit}
}

// Create spawns a shell under a pseudo-terminal and binds its output
// delegate. The producer-side handler is bound exactly once, at creation,
// and never re-bound.
func (m *Manager) Create(sessionID string, opts CreateOptions) (*Session, error) {
	cols, rows := opts.Cols, opts.Rows
	if cols == 0 {
		cols = 80
	}
	if rows == 0 {
		rows = 24
	}
	cwd := opts.Cwd
	if cwd == "" {
		if wd, err := os.Getwd(); err == nil {
			cwd = wd
		}
	}
	shell := opts.Shell
	if shell == "" {
		shell = os.Getenv("SHELL")
	}
	if shell == "" {
		shell = "/bin/bash"
	}
	if !allowedShells[shell] {
		return nil, errs.User("Shell not allowed")
	}

	m.mu.Lock()
	if _, exists := m.sessions[sessionID]; exists {
		m.mu.Unlock()
		return nil, errs.User("session already exists")
	}
	m.mu.Unlock()

	cmd := exec.Command(shell)
	cmd.Dir = cwd
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)})
	if err != nil {
		return nil, errs.Resourcef("spawn shell", err)
	}

	sess := &Session{
		ID:     sessionID,
		PID:    cmd.Process.Pid,
		Cols:   cols,
		Rows:   rows,
		Cwd:    cwd,
		Shell:  shell,
		Output: output.New(replayCapacity),
		ptmx:   ptmx,
		cmd:    cmd,
	}

	m.mu.Lock()
	m.sessions[sessionID] = sess
	m.mu.Unlock()

	go m.readLoop(sess)
	go m.waitLoop(sess)

	return sess, nil
}

func (m *Manager) readLoop(sess *Session) {
	buf := make([]byte, 32*1024)
	for {
		n, err := sess.ptmx.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			sess.Output.Handle(chunk)
		}
		if err != nil {
			return
		}
	}
}

func (m *Manager) waitLoop(sess *Session) {
	err := sess.cmd.Wait()
	code := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		} else {
			code = -1
		}
	}

	sess.mu.Lock()
	alreadyExited := sess.exited
	sess.exited = true
	sess.exitCode = code
	sess.mu.Unlock()

	if alreadyExited {
		return
	}
	if m.onExit != nil {
		m.onExit(sess.ID, code)
	}
}

// Write sends data to the session's PTY. Unknown session is a UserError.
func (m *Manager) Write(sessionID string, data []byte) error {
	sess, ok := m.get(sessionID)
	if !ok {
		return errs.User("unknown session")
	}
	if _, err := sess.ptmx.Write(data); err != nil {
		return errs.Transientf("write to pty", err)
	}
	return nil
}

// Resize changes the PTY's window size.
func (m *Manager) Resize(sessionID string, cols, rows int) error {
	sess, ok := m.get(sessionID)
	if !ok {
		return errs.User("unknown session")
	}
	if err := pty.Setsize(sess.ptmx, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)}); err != nil {
		return errs.Transientf("resize pty", err)
	}
	sess.mu.Lock()
	sess.Cols, sess.Rows = cols, rows
	sess.mu.Unlock()
	return nil
}

// AttachOutput attaches sink to the session's output delegate, returning
// buffered bytes produced while detached.
func (m *Manager) AttachOutput(sessionID string, sink output.Sink) ([]byte, error) {
	sess, ok := m.get(sessionID)
	if !ok {
		return nil, errs.User("unknown session")
	}
	return sess.Output.Attach(sink), nil
}

// DetachOutput detaches the session's output sink.
func (m *Manager) DetachOutput(sessionID string) error {
	sess, ok := m.get(sessionID)
	if !ok {
		return errs.User("unknown session")
	}
	sess.Output.Detach()
	return nil
}

// Destroy kills and removes a session. Idempotent: an unknown or
// already-destroyed sessionId is a no-op success.
func (m *Manager) Destroy(sessionID string) error {
	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	m.mu.Unlock()
	if !ok {
		return nil
	}
	if sess.cmd.Process != nil {
		_ = sess.cmd.Process.Kill()
	}
	_ = sess.ptmx.Close()
	return nil
}

// DestroyAll kills and removes every live session.
func (m *Manager) DestroyAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	for _, id := range ids {
		_ = m.Destroy(id)
	}
}

// HasSession reports whether sessionID is currently live.
func (m *Manager) HasSession(sessionID string) bool {
	_, ok := m.get(sessionID)
	return ok
}

// IsExited reports the session's exit state. Returns (false, 0) for an
// unknown session.
func (m *Manager) IsExited(sessionID string) (bool, int) {
	sess, ok := m.get(sessionID)
	if !ok {
		return false, 0
	}
	return sess.Exited()
}

// GetPid returns the session's pid, or 0 if unknown.
func (m *Manager) GetPid(sessionID string) int {
	sess, ok := m.get(sessionID)
	if !ok {
		return 0
	}
	return sess.PID
}

// GetCwd resolves the session's current working directory by platform:
// darwin shells out to lsof, linux reads /proc/<pid>/cwd, and every other
// platform yields "". Any failure yields "" — this never returns an error
// to the caller.
func (m *Manager) GetCwd(sessionID string) string {
	sess, ok := m.get(sessionID)
	if !ok {
		return ""
	}
	return cwdForPid(sess.PID)
}

func (m *Manager) get(sessionID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	return sess, ok
}

// ids returns a snapshot of currently known session ids, for ListSessions
// glue in the bus layer.
func (m *Manager) ids() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

// List returns a snapshot of every live session's id, cwd and exited flag.
func (m *Manager) List() []SessionInfo {
	ids := m.ids()
	infos := make([]SessionInfo, 0, len(ids))
	for _, id := range ids {
		sess, ok := m.get(id)
		if !ok {
			continue
		}
		exited, _ := sess.Exited()
		infos = append(infos, SessionInfo{
			SessionID: id,
			Cwd:       sess.Cwd,
			Exited:    exited,
		})
	}
	return infos
}

// SessionInfo is the terminal:sessions wire payload shape for one session.
type SessionInfo struct {
	SessionID string `json:"sessionId"`
	Cwd       string `json:"cwd"`
	Exited    bool   `json:"exited"`
}
