//go:build !linux && !darwin

package pty

// cwdForPid has no implementation on this platform; the cwd lookup is
// best-effort everywhere per design and never throws.
func cwdForPid(pid int) string {
	return ""
}
