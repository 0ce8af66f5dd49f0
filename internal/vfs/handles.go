package vfs

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/CageChen/dirhub/internal/fs"
	"github.com/google/uuid"
)

// ErrTooManyOpenDirs is returned by Open when the handle table is full.
var ErrTooManyOpenDirs = errors.New("too many open directory handles")

type handle struct {
	mu     sync.Mutex // serializes Read/Close on dir
	dir    *fs.Dir
	opened time.Time
}

// HandleInfo describes an open handle.
type HandleInfo struct {
	ID     string    `json:"id"`
	Path   string    `json:"path"`
	Opened time.Time `json:"opened"`
}

// Handles keeps directory streams open across requests. A stream is
// registered under a random id and drops out of the table from its close
// hook, so an id stops resolving the moment its stream is closed.
type Handles struct {
	vfs *VFS

	mu    sync.Mutex
	open  map[string]*handle
	limit int
}

func newHandles(v *VFS, limit int) *Handles {
	return &Handles{vfs: v, open: make(map[string]*handle), limit: limit}
}

func (h *Handles) setLimit(limit int) {
	h.mu.Lock()
	h.limit = limit
	h.mu.Unlock()
}

// Open opens a stream on the virtual directory p and returns its id.
func (h *Handles) Open(p string) (string, error) {
	h.mu.Lock()
	full := h.limit > 0 && len(h.open) >= h.limit
	h.mu.Unlock()
	if full {
		return "", ErrTooManyOpenDirs
	}

	id := uuid.NewString()
	d, err := h.vfs.Opendir(p, fs.WithOnClose(func() { h.forget(id) }))
	if err != nil {
		return "", err
	}

	if err := h.register(id, d); err != nil {
		return "", err
	}
	return id, nil
}

// register stores d under id, or closes it when the table filled up while
// it was being opened.
func (h *Handles) register(id string, d *fs.Dir) error {
	h.mu.Lock()
	if h.limit > 0 && len(h.open) >= h.limit {
		h.mu.Unlock()
		// the close hook takes h.mu
		_ = d.Close()
		return ErrTooManyOpenDirs
	}
	h.open[id] = &handle{dir: d, opened: time.Now()}
	h.mu.Unlock()
	return nil
}

func (h *Handles) forget(id string) {
	h.mu.Lock()
	delete(h.open, id)
	h.mu.Unlock()
}

func (h *Handles) get(id string) (*handle, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	hd, ok := h.open[id]
	return hd, ok
}

// Read returns the next entry of the stream id, or nil once it is
// exhausted. Unknown ids fail like a closed stream.
func (h *Handles) Read(id string) (*fs.Dirent, string, error) {
	hd, ok := h.get(id)
	if !ok {
		return nil, "", fs.NewDirClosedError(fs.OpRead, id)
	}
	hd.mu.Lock()
	defer hd.mu.Unlock()
	ent, err := hd.dir.Read()
	return ent, hd.dir.Path(), err
}

// Close closes the stream id and removes it from the table.
func (h *Handles) Close(id string) error {
	hd, ok := h.get(id)
	if !ok {
		return fs.NewDirClosedError(fs.OpClose, id)
	}
	hd.mu.Lock()
	defer hd.mu.Unlock()
	return hd.dir.Close()
}

// List describes the open handles.
func (h *Handles) List() []HandleInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	infos := make([]HandleInfo, 0, len(h.open))
	for id, hd := range h.open {
		infos = append(infos, HandleInfo{ID: id, Path: hd.dir.Path(), Opened: hd.opened})
	}
	return infos
}

// Len returns the number of open handles.
func (h *Handles) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.open)
}

// Expire closes handles opened before cutoff and returns how many it closed.
func (h *Handles) Expire(cutoff time.Time) int {
	h.mu.Lock()
	var stale []string
	for id, hd := range h.open {
		if hd.opened.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	h.mu.Unlock()

	closed := 0
	for _, id := range stale {
		if err := h.Close(id); err == nil {
			closed++
		}
	}
	return closed
}

// CloseAll closes every open handle.
func (h *Handles) CloseAll() {
	h.mu.Lock()
	ids := make([]string, 0, len(h.open))
	for id := range h.open {
		ids = append(ids, id)
	}
	h.mu.Unlock()

	for _, id := range ids {
		if err := h.Close(id); err != nil && !fs.IsDirClosed(err) {
			log.Printf("vfs: closing handle %s: %v", id, err)
		}
	}
}
