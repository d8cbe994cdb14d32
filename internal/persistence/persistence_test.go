package persistence

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestOrphanThenReclaimReturnsRecord(t *testing.T) {
	m := New(time.Hour, nil, nil)
	m.Orphan("S1", "/tmp")

	rec := m.Reclaim("S1")
	if rec == nil || rec.LastCwd != "/tmp" {
		t.Fatalf("Reclaim = %+v, want record with cwd /tmp", rec)
	}
	if m.Reclaim("S1") != nil {
		t.Fatalf("second Reclaim should return nil, timer/record already consumed")
	}
}

func TestDuplicateOrphanIgnored(t *testing.T) {
	m := New(time.Hour, nil, nil)
	m.Orphan("S1", "/tmp")
	m.Orphan("S1", "/other")

	rec := m.Reclaim("S1")
	if rec.LastCwd != "/tmp" {
		t.Fatalf("duplicate orphan call should have been ignored, got cwd %q", rec.LastCwd)
	}
}

func TestOrphanExpiresAndDestroys(t *testing.T) {
	var destroyed, expired int32
	m := New(50*time.Millisecond,
		func(sessionID string) { atomic.AddInt32(&destroyed, 1) },
		func(sessionID string) { atomic.AddInt32(&expired, 1) },
	)
	m.Orphan("S2", "/tmp")

	time.Sleep(150 * time.Millisecond)

	if atomic.LoadInt32(&expired) != 1 {
		t.Fatalf("onExpire fired %d times, want 1", expired)
	}
	if atomic.LoadInt32(&destroyed) != 1 {
		t.Fatalf("destroy fired %d times, want 1", destroyed)
	}
	if m.Reclaim("S2") != nil {
		t.Fatalf("reclaim after expiry should return nil")
	}
}

func TestHandleOrphanedExitDoesNotFireOnExpire(t *testing.T) {
	var expired int32
	m := New(30*time.Millisecond, nil, func(sessionID string) { atomic.AddInt32(&expired, 1) })
	m.Orphan("S3", "/tmp")
	m.HandleOrphanedExit("S3")

	time.Sleep(80 * time.Millisecond)
	if atomic.LoadInt32(&expired) != 0 {
		t.Fatalf("onExpire should not fire after HandleOrphanedExit")
	}
}
