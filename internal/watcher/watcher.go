// Package watcher monitors the local mounts for changes and reports them as
// virtual tree paths via callbacks.
package watcher

import (
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/CageChen/dirhub/internal/vfs"
	"github.com/fsnotify/fsnotify"
)

// EventType represents the type of file system event
type EventType int

// File system event types.
const (
	EventCreate EventType = iota
	EventWrite
	EventRemove
	EventRename
)

func (t EventType) String() string {
	switch t {
	case EventCreate:
		return "create"
	case EventWrite:
		return "update"
	case EventRemove:
		return "remove"
	case EventRename:
		return "rename"
	}
	return "unknown"
}

// Event is a change at a virtual path
type Event struct {
	Type EventType
	Path string
}

// Callback is a function called when file changes occur
type Callback func(Event)

// Watcher monitors the on-disk directories behind local mounts. Git mounts
// read from the object database and are not watched.
type Watcher struct {
	watcher   *fsnotify.Watcher
	vfs       *vfs.VFS
	callbacks []Callback
	mu        sync.RWMutex
	done      chan struct{}
}

// New creates a new file system watcher
func New(v *vfs.VFS) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		watcher: w,
		vfs:     v,
		done:    make(chan struct{}),
	}, nil
}

// OnChange registers a callback for file change events
func (w *Watcher) OnChange(cb Callback) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

// Start watches every local mount and begins delivering events
func (w *Watcher) Start() error {
	w.addRoots()
	go w.eventLoop()
	return nil
}

// Refresh drops all watches and re-adds the current local mounts. Call it
// after the mount table changes.
func (w *Watcher) Refresh() {
	for _, p := range w.watcher.WatchList() {
		_ = w.watcher.Remove(p)
	}
	w.addRoots()
}

func (w *Watcher) addRoots() {
	for _, root := range w.vfs.LocalRoots() {
		w.addTree(root.Dir)
	}
}

// addTree watches dir and every visible directory below it.
func (w *Watcher) addTree(dir string) {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if _, ok := w.vfs.VirtualPath(path); !ok {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			log.Printf("watcher: cannot watch %s: %v", path, err)
		}
		return nil
	})
	if err != nil {
		log.Printf("watcher: failed to walk %s: %v", dir, err)
	}
}

// Stop stops the watcher
func (w *Watcher) Stop() error {
	close(w.done)
	return w.watcher.Close()
}

func (w *Watcher) eventLoop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("watcher: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	vp, ok := w.vfs.VirtualPath(event.Name)
	if !ok {
		return
	}

	var eventType EventType
	switch {
	case event.Has(fsnotify.Create):
		eventType = EventCreate
		if isDir(event.Name) {
			w.addTree(event.Name)
		}
	case event.Has(fsnotify.Write):
		eventType = EventWrite
	case event.Has(fsnotify.Remove):
		eventType = EventRemove
	case event.Has(fsnotify.Rename):
		eventType = EventRename
	default:
		return
	}

	e := Event{Type: eventType, Path: vp}

	w.mu.RLock()
	callbacks := make([]Callback, len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.RUnlock()

	for _, cb := range callbacks {
		cb(e)
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
