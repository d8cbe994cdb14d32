// Package filetree implements path-confined directory listing and flat
// file read/write.
package filetree

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vibepilot/agentd/internal/errs"
)

var ignoreSet = map[string]bool{
	"node_modules": true,
	".git":         true,
	"dist":         true,
	".next":        true,
	".turbo":       true,
	"coverage":     true,
	".DS_Store":    true,
}

var imageExt = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".svg": true, ".webp": true, ".ico": true, ".bmp": true,
}

var languageByExt = map[string]string{
	".go":   "go",
	".js":   "javascript",
	".jsx":  "javascript",
	".ts":   "typescript",
	".tsx":  "typescript",
	".py":   "python",
	".rb":   "ruby",
	".rs":   "rust",
	".java": "java",
	".c":    "c",
	".h":    "c",
	".cpp":  "cpp",
	".json": "json",
	".yaml": "yaml",
	".yml":  "yaml",
	".md":   "markdown",
	".html": "html",
	".css":  "css",
	".sh":   "shell",
}

var mimeByExt = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".webp": "image/webp",
	".ico":  "image/x-icon",
	".bmp":  "image/bmp",
}

// Node is one entry in a filetree:data response.
type Node struct {
	Name     string
	Path     string
	IsDir    bool
	Children []Node
}

// ReadResult is the file:data payload shape.
type ReadResult struct {
	Encoding string `json:"encoding"` // "base64" or "utf-8"
	Content  string `json:"content"`
	MimeType string `json:"mimeType"`
	Language string `json:"language,omitempty"` // only set for text
	ReadOnly bool   `json:"readonly,omitempty"` // only true for images
}

// Tree resolves paths relative to a confined root directory.
type Tree struct {
	root string
}

// New creates a Tree confined to root. root is resolved to an absolute
// path at construction so later prefix checks are robust to relative-path
// tricks.
func New(root string) (*Tree, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errs.Userf("resolve root", err)
	}
	return &Tree{root: abs}, nil
}

// resolve returns the absolute path for p, rejecting anything that escapes
// the configured root.
func (t *Tree) resolve(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", errs.User("Path traversal not allowed")
	}
	abs = filepath.Clean(abs)
	if abs != t.root && !strings.HasPrefix(abs, t.root+string(filepath.Separator)) {
		return "", errs.User("Path traversal not allowed")
	}
	return abs, nil
}

// List lists dirPath up to depth levels, directories before files,
// alphabetical within each group. Entries in the ignore set are dropped.
// An unreadable subdirectory is skipped, not an error.
func (t *Tree) List(dirPath string, depth int) ([]Node, error) {
	abs, err := t.resolve(dirPath)
	if err != nil {
		return nil, err
	}
	return listDir(abs, depth)
}

func listDir(dir string, depth int) ([]Node, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errs.Userf("list directory", err)
	}

	var dirs, files []Node
	for _, e := range entries {
		if ignoreSet[e.Name()] {
			continue
		}
		childPath := filepath.Join(dir, e.Name())
		if e.IsDir() {
			node := Node{Name: e.Name(), Path: childPath, IsDir: true}
			if depth > 0 {
				children, err := listDir(childPath, depth-1)
				if err == nil {
					node.Children = children
				}
				// unreadable subdirectory: skip silently, keep the node
				// itself with no children rather than erroring the whole
				// listing.
			}
			dirs = append(dirs, node)
		} else {
			files = append(files, Node{Name: e.Name(), Path: childPath, IsDir: false})
		}
	}

	sort.Slice(dirs, func(i, j int) bool { return dirs[i].Name < dirs[j].Name })
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return append(dirs, files...), nil
}

// Read classifies path by extension and returns its content appropriately
// encoded.
func (t *Tree) Read(path string) (*ReadResult, error) {
	abs, err := t.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, errs.Userf("read file", err)
	}

	ext := strings.ToLower(filepath.Ext(abs))
	if imageExt[ext] {
		return &ReadResult{
			Encoding: "base64",
			Content:  base64.StdEncoding.EncodeToString(data),
			MimeType: mimeByExt[ext],
			ReadOnly: true,
		}, nil
	}

	return &ReadResult{
		Encoding: "utf-8",
		Content:  string(data),
		Language: languageByExt[ext],
		MimeType: "text/plain",
	}, nil
}

// Write writes utf-8 content to path, returning the byte count written.
func (t *Tree) Write(path, content string) (int, error) {
	abs, err := t.resolve(path)
	if err != nil {
		return 0, err
	}
	data := []byte(content)
	if err := os.WriteFile(abs, data, 0o644); err != nil {
		return 0, errs.Userf("write file", err)
	}
	return len(data), nil
}
