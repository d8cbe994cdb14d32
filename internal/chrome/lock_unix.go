//go:build linux || darwin

package chrome

import "golang.org/x/sys/unix"

// pidAlive probes pid with signal 0, which the kernel delivers to no one
// but still validates that the process exists and is reachable by us.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	if err == nil {
		return true
	}
	return err != unix.ESRCH
}
