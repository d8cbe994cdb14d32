// Package chrome locates a Chrome/Chromium executable, manages per-project
// profile directories, and reclaims singleton locks left behind by a Chrome
// process that no longer exists.
package chrome

import (
	"os"
	"path/filepath"
	"runtime"
)

// candidatePaths, keyed by GOOS, in search order. The first path that
// exists on disk wins; this mirrors the way browser-launcher tooling in the
// wild (karma-chrome-launcher, selenium's ChromeDriver) resolves an
// executable without requiring the user to set an environment variable.
var candidatePaths = map[string][]string{
	"darwin": {
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
		"/Applications/Chromium.app/Contents/MacOS/Chromium",
		"/Applications/Google Chrome Canary.app/Contents/MacOS/Google Chrome Canary",
	},
	"linux": {
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
	},
	"windows": {
		`C:\Program Files\Google\Chrome\Application\chrome.exe`,
		`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
	},
}

// windowsLocalAppDataSuffix is appended to %LOCALAPPDATA% to find a
// per-user Chrome install, since Chrome for individual (non-admin) Windows
// installs lands under the user's local app data directory rather than
// Program Files.
const windowsLocalAppDataSuffix = `Google\Chrome\Application\chrome.exe`

// Detect walks the platform's candidate path table and returns the first
// executable that exists, or "" if none do.
func Detect() string {
	paths := append([]string(nil), candidatePaths[runtime.GOOS]...)
	if runtime.GOOS == "windows" {
		if lad := os.Getenv("LOCALAPPDATA"); lad != "" {
			paths = append(paths, filepath.Join(lad, windowsLocalAppDataSuffix))
		}
	}
	for _, p := range paths {
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p
		}
	}
	return ""
}
