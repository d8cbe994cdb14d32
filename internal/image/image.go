// Package image implements chunked image upload assembly into a
// process-unique temp directory.
package image

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/vibepilot/agentd/internal/errs"
)

type transfer struct {
	filename  string
	totalSize int
	chunks    map[int][]byte
}

// Receiver assembles chunked uploads into files under a process-unique
// temp directory.
type Receiver struct {
	tempDir string

	mu        sync.Mutex
	transfers map[string]*transfer
}

// New creates a Receiver with its own mkdtemp-style temp directory under
// os.TempDir.
func New() (*Receiver, error) {
	dir, err := os.MkdirTemp("", "agentd-images-*")
	if err != nil {
		return nil, errs.Resourcef("create temp directory", err)
	}
	return &Receiver{tempDir: dir, transfers: make(map[string]*transfer)}, nil
}

// TempDir returns the receiver's process-unique temp directory.
func (r *Receiver) TempDir() string { return r.tempDir }

// StartTransfer records a new transfer under id, generating one if id is
// empty.
func (r *Receiver) StartTransfer(id, filename string, totalSize int) string {
	if id == "" {
		id = uuid.NewString()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transfers[id] = &transfer{
		filename:  filename,
		totalSize: totalSize,
		chunks:    make(map[int][]byte),
	}
	return id
}

// AddChunk stores chunk index's data (base64) for transfer id. Fails if id
// is unknown.
func (r *Receiver) AddChunk(id string, index int, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.transfers[id]
	if !ok {
		return errs.User("unknown image transfer id")
	}
	t.chunks[index] = data
	return nil
}

// Complete assembles all chunks in index order, base64-decodes them,
// writes the result to a uniquely-named file under the temp directory, and
// drops the transfer's state.
func (r *Receiver) Complete(id string) (string, error) {
	r.mu.Lock()
	t, ok := r.transfers[id]
	if ok {
		delete(r.transfers, id)
	}
	r.mu.Unlock()
	if !ok {
		return "", errs.User("unknown image transfer id")
	}

	indices := make([]int, 0, len(t.chunks))
	for idx := range t.chunks {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	var encoded []byte
	for _, idx := range indices {
		encoded = append(encoded, t.chunks[idx]...)
	}
	decoded, err := base64.StdEncoding.DecodeString(string(encoded))
	if err != nil {
		return "", errs.Userf("decode image data", err)
	}

	name := uuid.NewString() + filepath.Ext(t.filename)
	path := filepath.Join(r.tempDir, name)
	if err := os.WriteFile(path, decoded, 0o600); err != nil {
		return "", errs.Resourcef("write image file", err)
	}
	return path, nil
}
