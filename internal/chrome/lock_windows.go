//go:build windows

package chrome

import "syscall"

// pidAlive opens the process with a minimal access right; ERROR_INVALID_PARAMETER
// means the pid does not exist, which is the Windows analogue of the POSIX
// signal-0 probe used on darwin/linux.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	const processQueryLimitedInformation = 0x1000
	h, err := syscall.OpenProcess(processQueryLimitedInformation, false, uint32(pid))
	if err != nil {
		return false
	}
	syscall.CloseHandle(h)
	return true
}
