// Package persistence implements the three-state orphan|attached|destroyed
// machine that keeps a PTY session alive for a grace period after its
// owning client disconnects.
package persistence

import (
	"sync"
	"time"
)

// DefaultTimeout is the grace period before an orphaned session is expired,
// matching the config document's server.sessionTimeout default of 300s.
const DefaultTimeout = 5 * time.Minute

// Record is the state held for one orphaned session.
type Record struct {
	SessionID  string
	LastCwd    string
	OrphanedAt time.Time
}

// Manager tracks orphaned sessions and their expiry timers. A sessionId is
// in at most one of {tracked-here (orphaned), not tracked (attached or
// destroyed)} — the caller (the PTY manager / bus glue) is the source of
// truth for attached vs destroyed.
type Manager struct {
	timeout  time.Duration
	destroy  func(sessionID string) // PTY manager's Destroy, called on expiry
	onExpire func(sessionID string)

	mu      sync.Mutex
	records map[string]*Record
	timers  map[string]*time.Timer
}

// New creates a Manager with the given default orphan timeout. destroy is
// the PTY manager's Destroy method (or equivalent); on expiry the record is
// dropped, destroy is called, then onExpire fires — in that order.
func New(timeout time.Duration, destroy func(sessionID string), onExpire func(sessionID string)) *Manager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Manager{
		timeout:  timeout,
		destroy:  destroy,
		onExpire: onExpire,
		records:  make(map[string]*Record),
		timers:   make(map[string]*time.Timer),
	}
}

// Orphan records a session as orphaned and arms its single-shot expiry
// timer. A duplicate call for a sessionId already orphaned is ignored.
func (m *Manager) Orphan(sessionID, lastCwd string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.records[sessionID]; exists {
		return
	}
	m.records[sessionID] = &Record{SessionID: sessionID, LastCwd: lastCwd, OrphanedAt: time.Now()}
	m.timers[sessionID] = time.AfterFunc(m.timeout, func() { m.expire(sessionID) })
}

// Reclaim cancels the timer and returns the record for sessionID, or nil
// if it was not orphaned.
func (m *Manager) Reclaim(sessionID string) *Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[sessionID]
	if !ok {
		return nil
	}
	if t, ok := m.timers[sessionID]; ok {
		t.Stop()
		delete(m.timers, sessionID)
	}
	delete(m.records, sessionID)
	return rec
}

// HandleOrphanedExit cancels the timer and drops the record without
// calling onExpire or destroying anything — the shell is already dead.
func (m *Manager) HandleOrphanedExit(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.timers[sessionID]; ok {
		t.Stop()
		delete(m.timers, sessionID)
	}
	delete(m.records, sessionID)
}

// IsOrphaned reports whether sessionID currently has an orphan record.
func (m *Manager) IsOrphaned(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[sessionID]
	return ok
}

func (m *Manager) expire(sessionID string) {
	m.mu.Lock()
	_, ok := m.records[sessionID]
	if ok {
		delete(m.records, sessionID)
		delete(m.timers, sessionID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	if m.destroy != nil {
		m.destroy(sessionID)
	}
	if m.onExpire != nil {
		m.onExpire(sessionID)
	}
}

// DestroyAll cancels every timer, destroys every orphaned session's shell,
// and drops every record.
func (m *Manager) DestroyAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.records))
	for id, t := range m.timers {
		t.Stop()
		ids = append(ids, id)
	}
	m.records = make(map[string]*Record)
	m.timers = make(map[string]*time.Timer)
	m.mu.Unlock()

	if m.destroy == nil {
		return
	}
	for _, id := range ids {
		m.destroy(id)
	}
}
