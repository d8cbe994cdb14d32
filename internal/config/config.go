// Package config implements the daemon's config document: load/default/
// save/hot-reload, published under an atomic pointer so readers never
// block on a reload in progress.
package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/vibepilot/agentd/internal/errs"
)

// Auth holds the transport accept-handshake policy.
type Auth struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token,omitempty"`
}

// Server holds daemon-wide settings.
type Server struct {
	Port           int    `yaml:"port"`
	SessionTimeout int    `yaml:"sessionTimeout"`
	AgentName      string `yaml:"agentName"`
}

// Project is one entry in the configured project list.
type Project struct {
	Name string `yaml:"name,omitempty"`
	Path string `yaml:"path"`
}

// ProjectList decodes a YAML sequence whose entries are either a bare path
// string or a {name, path} mapping, matching the teacher's PathEntry/
// PathList mixed-scalar-or-mapping idiom. A bare string's name defaults to
// its path's base name.
type ProjectList []Project

// UnmarshalYAML handles both scalar and mapping nodes in a YAML sequence.
func (pl *ProjectList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.SequenceNode {
		return &yaml.TypeError{Errors: []string{"projects: expected a sequence"}}
	}
	result := make(ProjectList, 0, len(value.Content))
	for _, item := range value.Content {
		switch item.Kind {
		case yaml.ScalarNode:
			result = append(result, Project{Path: item.Value, Name: filepath.Base(item.Value)})
		case yaml.MappingNode:
			var p Project
			if err := item.Decode(&p); err != nil {
				return err
			}
			if p.Name == "" {
				p.Name = filepath.Base(p.Path)
			}
			result = append(result, p)
		}
	}
	*pl = result
	return nil
}

// MarshalYAML serializes entries whose name is just their path's base name
// back to a plain string, keeping a hand-edited config file free of
// redundant names.
func (pl ProjectList) MarshalYAML() (any, error) {
	nodes := make([]*yaml.Node, 0, len(pl))
	for _, p := range pl {
		if p.Name == filepath.Base(p.Path) {
			nodes = append(nodes, &yaml.Node{Kind: yaml.ScalarNode, Value: p.Path})
			continue
		}
		var n yaml.Node
		if err := n.Encode(p); err != nil {
			return nil, err
		}
		nodes = append(nodes, &n)
	}
	return &yaml.Node{Kind: yaml.SequenceNode, Content: nodes}, nil
}

// Document is the full config document shape.
type Document struct {
	Version  string      `yaml:"version"`
	Auth     Auth        `yaml:"auth"`
	Server   Server      `yaml:"server"`
	Projects ProjectList `yaml:"projects,omitempty"`
}

// Default returns the in-memory default document, used whenever the file
// is missing or fails to parse.
func Default() Document {
	hostname, _ := os.Hostname()
	return Document{
		Version: "0.1.0",
		Auth:    Auth{Mode: "none"},
		Server: Server{
			Port:           9800,
			SessionTimeout: 300,
			AgentName:      hostname,
		},
		Projects: ProjectList{},
	}
}

// Load reads path as YAML, falling back to Default on a missing file or a
// parse failure — a corrupt config must never prevent the daemon from
// starting.
func Load(path string) Document {
	data, err := os.ReadFile(path)
	if err != nil {
		return Default()
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Default()
	}
	return doc
}

// Save marshals doc to path as YAML, creating parent directories first.
func Save(path string, doc Document) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errs.Resourcef("create config directory", err)
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return errs.Userf("encode config", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errs.Resourcef("write config", err)
	}
	return nil
}

// Manager holds the currently-active document under an atomic pointer and
// optionally hot-reloads it from disk.
type Manager struct {
	path    string
	current atomic.Pointer[Document]
	watcher *fsnotify.Watcher
}

// NewManager loads path (or the default document) and returns a Manager
// publishing it.
func NewManager(path string) *Manager {
	doc := Load(path)
	m := &Manager{path: path}
	m.current.Store(&doc)
	return m
}

// Current returns the active document. Safe to call concurrently with
// Watch's reload goroutine.
func (m *Manager) Current() Document {
	return *m.current.Load()
}

// Path returns the file this manager loads from and saves to.
func (m *Manager) Path() string {
	return m.path
}

// Watch starts an fsnotify watcher on the config file's parent directory —
// watching the file itself misses editor atomic-rename-based saves — and
// republishes the document on any Write/Create event for path.
func (m *Manager) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errs.Resourcef("create config watcher", err)
	}
	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		w.Close()
		return errs.Resourcef("create config directory", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return errs.Resourcef("watch config directory", err)
	}
	m.watcher = w

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(m.path) {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				doc := Load(m.path)
				m.current.Store(&doc)
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return nil
}

// Close stops the watcher, if running.
func (m *Manager) Close() error {
	if m.watcher == nil {
		return nil
	}
	return m.watcher.Close()
}

// SessionTimeout returns the active session timeout as a time.Duration.
func (m *Manager) SessionTimeout() time.Duration {
	doc := m.Current()
	if doc.Server.SessionTimeout <= 0 {
		return 300 * time.Second
	}
	return time.Duration(doc.Server.SessionTimeout) * time.Second
}
