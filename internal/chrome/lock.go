package chrome

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
)

var singletonLockRE = regexp.MustCompile(`^(.+)-(\d+)$`)

// ClearStaleLock removes Chrome's SingletonLock (and its companion
// SingletonSocket/SingletonCookie) from the given profile directory if the
// lock's target encodes a pid that is no longer alive. A missing lock is a
// no-op, not an error — Chrome did not leave one behind, or a previous call
// already cleared it.
func ClearStaleLock(profileDir string) error {
	lockPath := filepath.Join(profileDir, "SingletonLock")
	target, err := os.Readlink(lockPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read singleton lock: %w", err)
	}

	host, pid, ok := parseSingletonTarget(target)
	if !ok {
		// Target didn't match the expected "<hostname>-<pid>" shape —
		// leave it alone rather than guess.
		return nil
	}
	_ = host

	if pidAlive(pid) {
		return nil
	}

	for _, name := range []string{"SingletonLock", "SingletonSocket", "SingletonCookie"} {
		if err := os.Remove(filepath.Join(profileDir, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", name, err)
		}
	}
	return nil
}

func parseSingletonTarget(target string) (host string, pid int, ok bool) {
	base := filepath.Base(target)
	m := singletonLockRE.FindStringSubmatch(base)
	if m == nil {
		return "", 0, false
	}
	pid, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, false
	}
	return m[1], pid, true
}
