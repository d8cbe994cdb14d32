package daemon

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"path/filepath"
	"time"

	"github.com/vibepilot/agentd/internal/browser"
	"github.com/vibepilot/agentd/internal/config"
	"github.com/vibepilot/agentd/internal/errs"
	"github.com/vibepilot/agentd/internal/input"
	"github.com/vibepilot/agentd/internal/output"
	"github.com/vibepilot/agentd/internal/pty"
	"github.com/vibepilot/agentd/internal/tunnel"
)

func browserSessionOptions(projectID string, p browserStartPayload) browser.StartOptions {
	return browser.StartOptions{
		ProjectID: projectID,
		URL:       p.URL,
		Width:     p.Width,
		Height:    p.Height,
		Quality:   p.Quality,
	}
}

// registerHandlers wires every wire message type to its component. Handler
// registration itself is side-effect-free (bus.Router.On just appends);
// the work happens when a frame is dispatched.
func (d *Daemon) registerHandlers() {
	d.router.On("terminal:create", d.handleTerminalCreate)
	d.router.On("terminal:input", d.handleTerminalInput)
	d.router.On("terminal:resize", d.handleTerminalResize)
	d.router.On("terminal:destroy", d.handleTerminalDestroy)
	d.router.On("terminal:attach", d.handleTerminalAttach)
	d.router.On("terminal:list-sessions", d.handleTerminalListSessions)
	d.router.On("terminal:cwd", d.handleTerminalCwd)

	d.router.On("filetree:list", d.handleFiletreeList)
	d.router.On("file:read", d.handleFileRead)
	d.router.On("file:write", d.handleFileWrite)

	d.router.On("browser:start", d.handleBrowserStart)
	d.router.On("browser:frame-ack", d.handleBrowserFrameAck)
	d.router.On("browser:input", d.handleBrowserInput)
	d.router.On("browser:navigate", d.handleBrowserNavigate)
	d.router.On("browser:resize", d.handleBrowserResize)
	d.router.On("browser:stop", d.handleBrowserStop)

	d.router.On("tunnel:open", d.handleTunnelOpen)
	d.router.On("tunnel:close", d.handleTunnelClose)
	d.router.On("tunnel:request", d.handleTunnelRequest)

	d.router.On("image:start", d.handleImageStart)
	d.router.On("image:chunk", d.handleImageChunk)
	d.router.On("image:complete", d.handleImageComplete)

	d.router.On("project:list", d.handleProjectList)
	d.router.On("project:switch", d.handleProjectSwitch)
	d.router.On("project:add", d.handleProjectAdd)
	d.router.On("project:remove", d.handleProjectRemove)
	d.router.On("project:update", d.handleProjectUpdate)
}

// --- terminal ---

type terminalCreatePayload struct {
	SessionID string `json:"sessionId"`
	Cols      int    `json:"cols"`
	Rows      int    `json:"rows"`
	Cwd       string `json:"cwd"`
	Shell     string `json:"shell"`
}

func (d *Daemon) handleTerminalCreate(raw json.RawMessage) {
	var p terminalCreatePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		d.router.Send("terminal:error", errPayload("", err))
		return
	}
	sess, err := d.pty.Create(p.SessionID, pty.CreateOptions{
		Cols: p.Cols, Rows: p.Rows, Cwd: p.Cwd, Shell: p.Shell,
	})
	if err != nil {
		d.router.Send("terminal:error", errPayload(p.SessionID, err))
		return
	}
	d.router.Send("terminal:created", map[string]any{"sessionId": p.SessionID, "pid": sess.PID})
}

type sessionInputPayload struct {
	SessionID string `json:"sessionId"`
	Data      string `json:"data"`
}

func (d *Daemon) handleTerminalInput(raw json.RawMessage) {
	var p sessionInputPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		d.router.Send("terminal:error", errPayload("", err))
		return
	}
	if err := d.pty.Write(p.SessionID, []byte(p.Data)); err != nil {
		d.router.Send("terminal:error", errPayload(p.SessionID, err))
	}
}

type terminalResizePayload struct {
	SessionID string `json:"sessionId"`
	Cols      int    `json:"cols"`
	Rows      int    `json:"rows"`
}

func (d *Daemon) handleTerminalResize(raw json.RawMessage) {
	var p terminalResizePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		d.router.Send("terminal:error", errPayload("", err))
		return
	}
	if err := d.pty.Resize(p.SessionID, p.Cols, p.Rows); err != nil {
		d.router.Send("terminal:error", errPayload(p.SessionID, err))
	}
}

type sessionIDPayload struct {
	SessionID string `json:"sessionId"`
}

func (d *Daemon) handleTerminalDestroy(raw json.RawMessage) {
	var p sessionIDPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		d.router.Send("terminal:error", errPayload("", err))
		return
	}
	exited, exitCode := d.pty.IsExited(p.SessionID)
	if err := d.pty.Destroy(p.SessionID); err != nil {
		d.router.Send("terminal:error", errPayload(p.SessionID, err))
		return
	}
	resp := map[string]any{"sessionId": p.SessionID}
	if exited {
		resp["exitCode"] = exitCode
	}
	d.router.Send("terminal:destroyed", resp)
}

func (d *Daemon) handleTerminalAttach(raw json.RawMessage) {
	var p sessionIDPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		d.router.Send("terminal:error", errPayload("", err))
		return
	}
	d.persist.Reclaim(p.SessionID)
	buffered, err := d.pty.AttachOutput(p.SessionID, output.Sink(func(data []byte) error {
		d.router.Send("terminal:output", map[string]any{"sessionId": p.SessionID, "data": string(data)})
		return nil
	}))
	if err != nil {
		d.router.Send("terminal:error", errPayload(p.SessionID, err))
		return
	}
	d.router.Send("terminal:attached", map[string]any{"sessionId": p.SessionID, "buffered": string(buffered)})
}

func (d *Daemon) handleTerminalListSessions(raw json.RawMessage) {
	d.router.Send("terminal:sessions", map[string]any{"sessions": d.pty.List()})
}

func (d *Daemon) handleTerminalCwd(raw json.RawMessage) {
	var p sessionIDPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		d.router.Send("terminal:error", errPayload("", err))
		return
	}
	d.router.Send("terminal:cwd", map[string]any{"sessionId": p.SessionID, "cwd": d.pty.GetCwd(p.SessionID)})
}

// --- file tree ---

type filetreeListPayload struct {
	Path  string `json:"path"`
	Depth int    `json:"depth"`
}

func (d *Daemon) handleFiletreeList(raw json.RawMessage) {
	var p filetreeListPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		d.router.Send("file:error", errPayload("", err))
		return
	}
	tree, err := d.activeTree()
	if err != nil {
		d.router.Send("file:error", errPayload("", err))
		return
	}
	nodes, err := tree.List(p.Path, p.Depth)
	if err != nil {
		d.router.Send("file:error", errPayload("", err))
		return
	}
	d.router.Send("filetree:data", map[string]any{"nodes": nodes})
}

type filePathPayload struct {
	Path string `json:"path"`
}

func (d *Daemon) handleFileRead(raw json.RawMessage) {
	var p filePathPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		d.router.Send("file:error", errPayload("", err))
		return
	}
	tree, err := d.activeTree()
	if err != nil {
		d.router.Send("file:error", errPayload("", err))
		return
	}
	result, err := tree.Read(p.Path)
	if err != nil {
		d.router.Send("file:error", errPayload("", err))
		return
	}
	d.router.Send("file:data", result)
}

type fileWritePayload struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

func (d *Daemon) handleFileWrite(raw json.RawMessage) {
	var p fileWritePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		d.router.Send("file:error", errPayload("", err))
		return
	}
	tree, err := d.activeTree()
	if err != nil {
		d.router.Send("file:error", errPayload("", err))
		return
	}
	size, err := tree.Write(p.Path, p.Content)
	if err != nil {
		d.router.Send("file:error", errPayload("", err))
		return
	}
	d.router.Send("file:written", map[string]any{"size": size})
}

// --- browser ---

type browserStartPayload struct {
	URL     string `json:"url"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Quality int    `json:"quality"`
}

func (d *Daemon) handleBrowserStart(raw json.RawMessage) {
	var p browserStartPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		d.router.Send("browser:error", errPayload("", err))
		return
	}
	d.mu.Lock()
	project := d.activeProject
	d.mu.Unlock()
	go func() {
		ctx := context.Background()
		_ = d.browser.Start(ctx, browserSessionOptions(project, p))
	}()
}

func (d *Daemon) handleBrowserFrameAck(raw json.RawMessage) {
	var p struct {
		Timestamp float64 `json:"timestamp"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}
	latencyMs := int(time.Since(time.Unix(0, int64(p.Timestamp*float64(time.Second)))) / time.Millisecond)
	d.browser.FrameAck(latencyMs)
}

func (d *Daemon) handleBrowserInput(raw json.RawMessage) {
	var ev input.Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		d.router.Send("browser:error", errPayload("", err))
		return
	}
	if err := d.browser.Input(ev); err != nil {
		d.router.Send("browser:error", errPayload("", err))
	}
}

func (d *Daemon) handleBrowserNavigate(raw json.RawMessage) {
	var p struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		d.router.Send("browser:error", errPayload("", err))
		return
	}
	if err := d.browser.Navigate(p.URL); err != nil {
		d.router.Send("browser:error", errPayload("", err))
	}
}

func (d *Daemon) handleBrowserResize(raw json.RawMessage) {
	var p struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		d.router.Send("browser:error", errPayload("", err))
		return
	}
	if err := d.browser.Resize(p.Width, p.Height); err != nil {
		d.router.Send("browser:error", errPayload("", err))
	}
}

func (d *Daemon) handleBrowserStop(raw json.RawMessage) {
	if err := d.browser.Stop(); err != nil {
		d.router.Send("browser:error", errPayload("", err))
	}
}

// --- tunnel ---

type tunnelOpenPayload struct {
	TunnelID string `json:"tunnelId"`
	Port     int    `json:"port"`
	Host     string `json:"host"`
}

func (d *Daemon) handleTunnelOpen(raw json.RawMessage) {
	var p tunnelOpenPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		d.router.Send("tunnel:error", errPayload("", err))
		return
	}
	if err := d.tunnels.Open(p.TunnelID, p.Port, p.Host); err != nil {
		d.router.Send("tunnel:error", map[string]any{"tunnelId": p.TunnelID, "error": err.Error()})
		return
	}
	d.router.Send("tunnel:opened", map[string]any{"tunnelId": p.TunnelID})
}

func (d *Daemon) handleTunnelClose(raw json.RawMessage) {
	var p struct {
		TunnelID string `json:"tunnelId"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}
	d.tunnels.Close(p.TunnelID)
}

type tunnelRequestPayload struct {
	RequestID string              `json:"requestId"`
	TunnelID  string              `json:"tunnelId"`
	Method    string              `json:"method"`
	Path      string              `json:"path"`
	Headers   map[string][]string `json:"headers"`
	Body      string              `json:"body"`
}

func (d *Daemon) handleTunnelRequest(raw json.RawMessage) {
	var p tunnelRequestPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		d.router.Send("tunnel:error", errPayload("", err))
		return
	}
	var body []byte
	if p.Body != "" {
		decoded, err := base64.StdEncoding.DecodeString(p.Body)
		if err != nil {
			d.router.Send("tunnel:error", map[string]any{"tunnelId": p.TunnelID, "error": err.Error()})
			return
		}
		body = decoded
	}
	resp, err := d.tunnels.Forward(p.TunnelID, tunnel.Request{
		RequestID: p.RequestID,
		Method:    p.Method,
		Path:      p.Path,
		Headers:   p.Headers,
		Body:      body,
	})
	if err != nil {
		d.router.Send("tunnel:error", map[string]any{"tunnelId": p.TunnelID, "error": err.Error()})
		return
	}
	d.router.Send("tunnel:response", resp)
}

// --- image ---

type imageStartPayload struct {
	TransferID string `json:"transferId"`
	Filename   string `json:"filename"`
	TotalSize  int    `json:"totalSize"`
}

func (d *Daemon) handleImageStart(raw json.RawMessage) {
	var p imageStartPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}
	d.images.StartTransfer(p.TransferID, p.Filename, p.TotalSize)
}

type imageChunkPayload struct {
	TransferID string `json:"transferId"`
	ChunkIndex int    `json:"chunkIndex"`
	Data       string `json:"data"`
}

func (d *Daemon) handleImageChunk(raw json.RawMessage) {
	var p imageChunkPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}
	if err := d.images.AddChunk(p.TransferID, p.ChunkIndex, []byte(p.Data)); err != nil {
		d.router.Send("image:error", map[string]any{"transferId": p.TransferID, "error": err.Error()})
	}
}

func (d *Daemon) handleImageComplete(raw json.RawMessage) {
	var p struct {
		TransferID string `json:"transferId"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}
	path, err := d.images.Complete(p.TransferID)
	if err != nil {
		d.router.Send("image:error", map[string]any{"transferId": p.TransferID, "error": err.Error()})
		return
	}
	d.router.Send("image:saved", map[string]any{"path": path})
}

// --- project ---

func (d *Daemon) handleProjectList(raw json.RawMessage) {
	d.router.Send("project:list-data", map[string]any{"projects": d.cfg.Current().Projects})
}

func (d *Daemon) handleProjectSwitch(raw json.RawMessage) {
	var p struct {
		ProjectID string `json:"projectId"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}
	if _, err := d.treeFor(p.ProjectID); err != nil {
		d.router.Send("project:switched", map[string]any{"error": err.Error()})
		return
	}
	d.mu.Lock()
	d.activeProject = p.ProjectID
	d.mu.Unlock()

	var project any
	for _, proj := range d.cfg.Current().Projects {
		if proj.Name == p.ProjectID {
			project = proj
			break
		}
	}
	d.router.Send("project:switched", map[string]any{"project": project})
}

func (d *Daemon) handleProjectAdd(raw json.RawMessage) {
	var p struct {
		Name string `json:"name"`
		Path string `json:"path"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}
	if p.Path == "" {
		d.router.Send("project:error", errPayload("", errs.User("path is required")))
		return
	}
	name := p.Name
	if name == "" {
		name = filepath.Base(p.Path)
	}

	doc := d.cfg.Current()
	doc.Projects = append(doc.Projects, config.Project{Name: name, Path: p.Path})
	if err := d.saveProjects(doc); err != nil {
		d.router.Send("project:error", errPayload("", err))
		return
	}
	d.router.Send("project:list-data", map[string]any{"projects": d.cfg.Current().Projects})
}

func (d *Daemon) handleProjectRemove(raw json.RawMessage) {
	var p struct {
		ProjectID string `json:"projectId"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}

	doc := d.cfg.Current()
	kept := make([]config.Project, 0, len(doc.Projects))
	for _, proj := range doc.Projects {
		if proj.Name != p.ProjectID {
			kept = append(kept, proj)
		}
	}
	doc.Projects = kept
	if err := d.saveProjects(doc); err != nil {
		d.router.Send("project:error", errPayload("", err))
		return
	}

	d.mu.Lock()
	delete(d.trees, p.ProjectID)
	if d.activeProject == p.ProjectID {
		d.activeProject = ""
	}
	d.mu.Unlock()

	d.router.Send("project:list-data", map[string]any{"projects": d.cfg.Current().Projects})
}

func (d *Daemon) handleProjectUpdate(raw json.RawMessage) {
	var p struct {
		ProjectID string `json:"projectId"`
		Name      string `json:"name"`
		Path      string `json:"path"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}

	doc := d.cfg.Current()
	found := false
	for i, proj := range doc.Projects {
		if proj.Name != p.ProjectID {
			continue
		}
		if p.Name != "" {
			doc.Projects[i].Name = p.Name
		}
		if p.Path != "" {
			doc.Projects[i].Path = p.Path
		}
		found = true
		break
	}
	if !found {
		d.router.Send("project:error", errPayload("", errs.User("project not found")))
		return
	}
	if err := d.saveProjects(doc); err != nil {
		d.router.Send("project:error", errPayload("", err))
		return
	}

	// the active tree is keyed by project ID; drop the cached one so a
	// renamed or moved project resolves its new path on next use.
	d.mu.Lock()
	delete(d.trees, p.ProjectID)
	d.mu.Unlock()

	d.router.Send("project:list-data", map[string]any{"projects": d.cfg.Current().Projects})
}

// saveProjects persists doc to the config manager's path and republishes it,
// the same whole-document swap config.Manager.Watch uses for an external
// reload.
func (d *Daemon) saveProjects(doc config.Document) error {
	if err := config.Save(d.cfg.Path(), doc); err != nil {
		return err
	}
	d.cfg = config.NewManager(d.cfg.Path())
	return nil
}

func errPayload(sessionID string, err error) map[string]any {
	if sessionID == "" {
		return map[string]any{"error": err.Error()}
	}
	return map[string]any{"sessionId": sessionID, "error": err.Error()}
}
