package chrome

import (
	"os"
	"path/filepath"

	"github.com/vibepilot/agentd/internal/errs"
)

// ProfileManager hands out a stable, per-project Chrome user-data directory
// under a single base directory.
type ProfileManager struct {
	base string
}

// NewProfileManager creates a manager rooted at base (e.g.
// "<user-config-dir>/agentd/chrome-profiles").
func NewProfileManager(base string) *ProfileManager {
	return &ProfileManager{base: base}
}

// ProfilePath returns (creating if necessary) the profile directory for the
// given project id.
func (m *ProfileManager) ProfilePath(projectID string) (string, error) {
	dir := filepath.Join(m.base, projectID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errs.Resourcef("create chrome profile dir", err)
	}
	return dir, nil
}
