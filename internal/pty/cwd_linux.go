//go:build linux

package pty

import (
	"fmt"
	"os"
	"strings"
)

// cwdForPid reads /proc/<pid>/cwd as a symlink. Any failure yields "".
func cwdForPid(pid int) string {
	link := fmt.Sprintf("/proc/%d/cwd", pid)
	target, err := os.Readlink(link)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(target)
}
