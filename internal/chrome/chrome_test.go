package chrome

import (
	"os"
	"path/filepath"
	"testing"
)

func TestProfilePathCreatesDir(t *testing.T) {
	base := t.TempDir()
	m := NewProfileManager(base)

	dir, err := m.ProfilePath("proj-1")
	if err != nil {
		t.Fatalf("ProfilePath: %v", err)
	}
	if dir != filepath.Join(base, "proj-1") {
		t.Fatalf("dir = %q, want %q", dir, filepath.Join(base, "proj-1"))
	}
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		t.Fatalf("profile dir not created: %v", err)
	}
}

func TestClearStaleLockMissingIsNoop(t *testing.T) {
	dir := t.TempDir()
	if err := ClearStaleLock(dir); err != nil {
		t.Fatalf("ClearStaleLock on missing lock: %v", err)
	}
}

func TestParseSingletonTarget(t *testing.T) {
	host, pid, ok := parseSingletonTarget("myhost-12345")
	if !ok || host != "myhost" || pid != 12345 {
		t.Fatalf("parseSingletonTarget = (%q, %d, %v)", host, pid, ok)
	}
	if _, _, ok := parseSingletonTarget("garbage"); ok {
		t.Fatalf("expected garbage target to not match")
	}
}

func TestClearStaleLockRemovesDeadPidLock(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, "SingletonLock")
	// A pid this large is virtually guaranteed not to be a live process.
	target := "somehost-999999999"
	if err := os.Symlink(target, lockPath); err != nil {
		t.Skipf("symlink unsupported: %v", err)
	}
	for _, name := range []string{"SingletonSocket", "SingletonCookie"} {
		os.WriteFile(filepath.Join(dir, name), nil, 0o644)
	}

	if err := ClearStaleLock(dir); err != nil {
		t.Fatalf("ClearStaleLock: %v", err)
	}
	if _, err := os.Lstat(lockPath); !os.IsNotExist(err) {
		t.Fatalf("lock file still present")
	}
}
