package daemon

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/vibepilot/agentd/internal/config"
)

func newTestDaemon(t *testing.T) (*Daemon, string) {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	d, err := New(cfgPath)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d, cfgPath
}

func TestStatusReportsZeroCountersBeforeAnyWork(t *testing.T) {
	d, _ := newTestDaemon(t)
	st := d.status()
	if st.Sessions != 0 || st.Tunnels != 0 || st.BrowserOpen {
		t.Fatalf("status = %+v, want all zero/false", st)
	}
}

func TestProjectSwitchResolvesConfiguredPath(t *testing.T) {
	d, cfgPath := newTestDaemon(t)
	projectDir := t.TempDir()
	doc := d.cfg.Current()
	doc.Projects = append(doc.Projects, config.Project{Name: "demo", Path: projectDir})
	if err := config.Save(cfgPath, doc); err != nil {
		t.Fatalf("save: %v", err)
	}
	d.cfg = config.NewManager(cfgPath)

	payload, _ := json.Marshal(map[string]string{"projectId": "demo"})
	d.handleProjectSwitch(payload)

	tree, err := d.activeTree()
	if err != nil {
		t.Fatalf("activeTree: %v", err)
	}
	if _, err := os.Stat(projectDir); err != nil {
		t.Fatalf("project dir missing: %v", err)
	}
	if _, err := tree.List(projectDir, 0); err != nil {
		t.Fatalf("List: %v", err)
	}
}

func TestFiletreeListRejectsPathOutsideActiveProject(t *testing.T) {
	d, cfgPath := newTestDaemon(t)
	projectDir := t.TempDir()
	doc := d.cfg.Current()
	doc.Projects = append(doc.Projects, config.Project{Name: "demo", Path: projectDir})
	if err := config.Save(cfgPath, doc); err != nil {
		t.Fatalf("save: %v", err)
	}
	d.cfg = config.NewManager(cfgPath)
	d.handleProjectSwitch(mustJSON(t, map[string]string{"projectId": "demo"}))

	tree, err := d.activeTree()
	if err != nil {
		t.Fatalf("activeTree: %v", err)
	}
	if _, err := tree.List(filepath.Join(projectDir, "..", "elsewhere"), 0); err == nil {
		t.Fatalf("expected traversal outside project root to fail")
	}
}

func TestTerminalLifecycleThroughHandlers(t *testing.T) {
	d, _ := newTestDaemon(t)
	d.handleTerminalCreate(mustJSON(t, map[string]any{
		"sessionId": "s1",
		"shell":     "/bin/sh",
	}))
	if !d.pty.HasSession("s1") {
		t.Fatalf("expected session s1 to be created")
	}

	d.handleTerminalResize(mustJSON(t, map[string]any{"sessionId": "s1", "cols": 100, "rows": 40}))
	d.handleTerminalDestroy(mustJSON(t, map[string]any{"sessionId": "s1"}))
	if d.pty.HasSession("s1") {
		t.Fatalf("expected session s1 to be destroyed")
	}
}

func TestTerminalCreateDisallowedShellReportsError(t *testing.T) {
	d, _ := newTestDaemon(t)
	d.handleTerminalCreate(mustJSON(t, map[string]any{
		"sessionId": "s2",
		"shell":     "/evil/sh",
	}))
	if d.pty.HasSession("s2") {
		t.Fatalf("disallowed shell must not spawn a session")
	}
}

func TestTransportDisconnectOrphansLiveSessions(t *testing.T) {
	d, _ := newTestDaemon(t)
	d.handleTerminalCreate(mustJSON(t, map[string]any{
		"sessionId": "s3",
		"shell":     "/bin/sh",
	}))
	if !d.pty.HasSession("s3") {
		t.Fatalf("expected session s3 to be created")
	}

	d.sw.Disconnect()

	if !d.persist.IsOrphaned("s3") {
		t.Fatalf("expected s3 to be orphaned after transport disconnect")
	}
}

func TestProjectAddPersistsAndAppearsInListData(t *testing.T) {
	d, cfgPath := newTestDaemon(t)
	projectDir := t.TempDir()

	d.handleProjectAdd(mustJSON(t, map[string]string{"path": projectDir}))

	if len(d.cfg.Current().Projects) != 1 {
		t.Fatalf("expected 1 project after add, got %d", len(d.cfg.Current().Projects))
	}
	got := d.cfg.Current().Projects[0]
	if got.Path != projectDir || got.Name != filepath.Base(projectDir) {
		t.Fatalf("project = %+v, want path %s", got, projectDir)
	}

	onDisk := config.Load(cfgPath)
	if len(onDisk.Projects) != 1 || onDisk.Projects[0].Path != projectDir {
		t.Fatalf("on-disk projects = %+v, want the added project persisted", onDisk.Projects)
	}
}

func TestProjectRemoveDropsConfiguredProject(t *testing.T) {
	d, cfgPath := newTestDaemon(t)
	projectDir := t.TempDir()
	doc := d.cfg.Current()
	doc.Projects = append(doc.Projects, config.Project{Name: "demo", Path: projectDir})
	if err := config.Save(cfgPath, doc); err != nil {
		t.Fatalf("save: %v", err)
	}
	d.cfg = config.NewManager(cfgPath)
	d.handleProjectSwitch(mustJSON(t, map[string]string{"projectId": "demo"}))

	d.handleProjectRemove(mustJSON(t, map[string]string{"projectId": "demo"}))

	if len(d.cfg.Current().Projects) != 0 {
		t.Fatalf("expected 0 projects after remove, got %d", len(d.cfg.Current().Projects))
	}
	d.mu.Lock()
	active := d.activeProject
	_, cached := d.trees["demo"]
	d.mu.Unlock()
	if active != "" {
		t.Fatalf("activeProject = %q, want cleared after removing the active project", active)
	}
	if cached {
		t.Fatalf("expected cached tree for removed project to be dropped")
	}
}

func TestProjectUpdateChangesPathAndDropsCachedTree(t *testing.T) {
	d, cfgPath := newTestDaemon(t)
	oldDir := t.TempDir()
	newDir := t.TempDir()
	doc := d.cfg.Current()
	doc.Projects = append(doc.Projects, config.Project{Name: "demo", Path: oldDir})
	if err := config.Save(cfgPath, doc); err != nil {
		t.Fatalf("save: %v", err)
	}
	d.cfg = config.NewManager(cfgPath)
	d.handleProjectSwitch(mustJSON(t, map[string]string{"projectId": "demo"}))

	d.handleProjectUpdate(mustJSON(t, map[string]string{"projectId": "demo", "path": newDir}))

	projects := d.cfg.Current().Projects
	if len(projects) != 1 || projects[0].Path != newDir {
		t.Fatalf("projects = %+v, want path updated to %s", projects, newDir)
	}
	d.mu.Lock()
	_, cached := d.trees["demo"]
	d.mu.Unlock()
	if cached {
		t.Fatalf("expected cached tree for updated project to be dropped")
	}
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}
