// Package vfs joins the configured mounts into one virtual tree and hands
// out its directory listings as streams.
package vfs

import (
	"errors"
	iofs "io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/CageChen/dirhub/internal/config"
	"github.com/CageChen/dirhub/internal/fs"
)

type mount struct {
	cfg     config.Mount
	backend fs.FileSystem
}

// rel maps a path relative to the mount onto the backend path.
func (m *mount) rel(p string) string {
	return fs.JoinSlash(m.cfg.SubPath, p)
}

// VFS is a read-only virtual tree. Its root is a synthesized directory whose
// entries are the mount aliases; "alias/rest" resolves to rest inside the
// mount. VFS implements fs.FileSystem.
type VFS struct {
	mu      sync.RWMutex
	mounts  map[string]*mount
	order   []string
	exclude []string
	sortBy  string

	handles *Handles
}

// New builds the tree described by cfg.
func New(cfg *config.Config) *VFS {
	v := &VFS{}
	v.handles = newHandles(v, cfg.MaxOpenDirs)
	v.Reload(cfg)
	return v
}

// backendFor returns the appropriate FileSystem for a mount config.
func backendFor(m config.Mount) fs.FileSystem {
	if m.GitRef != "" {
		return fs.NewGitFS(m.Path, m.GitRef)
	}
	return fs.NewLocalFS(m.Path)
}

// Reload replaces the mount table and listing settings. Streams that are
// already open keep reading from the backend they were opened on.
func (v *VFS) Reload(cfg *config.Config) {
	mounts := make(map[string]*mount, len(cfg.Mounts))
	order := make([]string, 0, len(cfg.Mounts))
	for _, m := range cfg.Mounts {
		if _, dup := mounts[m.Alias]; dup {
			log.Printf("vfs: ignoring duplicate mount alias %q", m.Alias)
			continue
		}
		mounts[m.Alias] = &mount{cfg: m, backend: backendFor(m)}
		order = append(order, m.Alias)
	}

	v.mu.Lock()
	v.mounts = mounts
	v.order = order
	v.exclude = append([]string(nil), cfg.Exclude...)
	v.sortBy = cfg.Sort
	v.mu.Unlock()
	v.handles.setLimit(cfg.MaxOpenDirs)
}

// Handles returns the table of open directory handles.
func (v *VFS) Handles() *Handles {
	return v.handles
}

// Clean normalizes a virtual path: no leading or trailing slash, "" for the root.
func Clean(p string) string {
	p = strings.Trim(filepath.ToSlash(p), "/")
	if p == "" || p == "." {
		return ""
	}
	return fs.JoinSlash("", p)
}

// resolve splits a virtual path into its mount and the path inside it.
func (v *VFS) resolve(p string) (*mount, string, error) {
	p = Clean(p)
	if p == "" {
		return nil, "", nil
	}
	alias, rest, _ := strings.Cut(p, "/")
	if strings.HasPrefix(rest, "..") || strings.Contains(rest, "/..") {
		return nil, "", os.ErrPermission
	}

	v.mu.RLock()
	m, ok := v.mounts[alias]
	v.mu.RUnlock()
	if !ok {
		return nil, "", os.ErrNotExist
	}
	if v.hidden(m, rest) {
		return nil, "", os.ErrNotExist
	}
	return m, rest, nil
}

// hidden reports whether rest, a path inside m, is excluded from the tree.
func (v *VFS) hidden(m *mount, rest string) bool {
	if rest == "" {
		return false
	}
	v.mu.RLock()
	global := v.exclude
	v.mu.RUnlock()

	for dir := rest; dir != "." && dir != ""; dir = filepath.Dir(dir) {
		base := filepath.Base(dir)
		for _, pattern := range global {
			if matched, _ := filepath.Match(pattern, base); matched {
				return true
			}
		}
	}
	return config.IsMountExcluded(rest, m.cfg.Exclude)
}

// Join joins a virtual directory and an entry name.
func (v *VFS) Join(dir, name string) string {
	return fs.JoinSlash(Clean(dir), name)
}

// Stat returns metadata for a virtual path. The root and the mount points
// report the mount alias as their name.
func (v *VFS) Stat(p string) (fs.FileInfo, error) {
	m, rest, err := v.resolve(p)
	if err != nil {
		return fs.FileInfo{}, err
	}
	if m == nil {
		return fs.FileInfo{Name: "", IsDir: true, Mode: os.ModeDir | 0o555}, nil
	}
	info, err := m.backend.Stat(m.rel(rest))
	if err != nil {
		return fs.FileInfo{}, err
	}
	if rest == "" {
		info.Name = m.cfg.Alias
	}
	return info, nil
}

// ReadFile reads a file through its mount.
func (v *VFS) ReadFile(p string) ([]byte, error) {
	m, rest, err := v.resolve(p)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, errors.New("cannot read directory as file")
	}
	return m.backend.ReadFile(m.rel(rest))
}

// ReadDir lists a virtual directory with excluded entries removed, in
// backend order.
func (v *VFS) ReadDir(p string) ([]fs.DirEntry, error) {
	m, rest, err := v.resolve(p)
	if err != nil {
		return nil, err
	}
	if m == nil {
		v.mu.RLock()
		defer v.mu.RUnlock()
		entries := make([]fs.DirEntry, len(v.order))
		for i, alias := range v.order {
			entries[i] = fs.DirEntry{Name: alias, IsDir: true}
		}
		return entries, nil
	}

	raw, err := m.backend.ReadDir(m.rel(rest))
	if err != nil {
		return nil, err
	}
	entries := raw[:0]
	for _, e := range raw {
		if !v.hidden(m, fs.JoinSlash(rest, e.Name)) {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// Opendir collects the visible names of a virtual directory, orders them
// per the sort setting and returns a stream over them.
func (v *VFS) Opendir(p string, opts ...fs.DirOption) (*fs.Dir, error) {
	p = Clean(p)
	entries, err := v.ReadDir(p)
	if err != nil {
		return nil, fs.NewError(fs.OpOpendir, p, err)
	}

	v.mu.RLock()
	sortBy := v.sortBy
	v.mu.RUnlock()
	sortEntries(entries, sortBy)

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return fs.Opendir(v, p, names, opts...), nil
}

func sortEntries(entries []fs.DirEntry, sortBy string) {
	switch sortBy {
	case config.SortNone:
	case config.SortName:
		sort.SliceStable(entries, func(i, j int) bool {
			return strings.ToLower(entries[i].Name) < strings.ToLower(entries[j].Name)
		})
	default:
		// directories first, then files, both alphabetically
		sort.SliceStable(entries, func(i, j int) bool {
			if entries[i].IsDir != entries[j].IsDir {
				return entries[i].IsDir
			}
			return strings.ToLower(entries[i].Name) < strings.ToLower(entries[j].Name)
		})
	}
}

// WalkFunc is called for every entry below the walked directory. Returning
// io/fs.SkipDir from a directory entry skips its contents; any other error
// stops the walk.
type WalkFunc func(p string, ent *fs.Dirent) error

// Walk visits the tree below root depth-first in listing order.
func (v *VFS) Walk(root string, fn WalkFunc) error {
	d, err := v.Opendir(root)
	if err != nil {
		return err
	}
	for ent, err := range d.Entries() {
		if err != nil {
			return err
		}
		p := v.Join(d.Path(), ent.Name)
		if err := fn(p, ent); err != nil {
			if errors.Is(err, iofs.SkipDir) {
				continue
			}
			return err
		}
		if ent.IsDir() {
			if err := v.Walk(p, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// LocalRoot is a mount served from disk.
type LocalRoot struct {
	Alias string
	Dir   string
}

// LocalRoots lists the on-disk directories behind local mounts.
func (v *VFS) LocalRoots() []LocalRoot {
	v.mu.RLock()
	defer v.mu.RUnlock()
	var roots []LocalRoot
	for _, alias := range v.order {
		m := v.mounts[alias]
		if m.cfg.GitRef != "" {
			continue
		}
		roots = append(roots, LocalRoot{
			Alias: alias,
			Dir:   filepath.Join(m.cfg.Path, filepath.FromSlash(m.cfg.SubPath)),
		})
	}
	return roots
}

// VirtualPath maps a path on disk back into the tree. It reports false for
// paths outside every local mount and for excluded paths.
func (v *VFS) VirtualPath(diskPath string) (string, bool) {
	for _, root := range v.LocalRoots() {
		rel, err := filepath.Rel(root.Dir, diskPath)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		vp := v.Join(root.Alias, filepath.ToSlash(rel))
		if _, _, err := v.resolve(vp); err != nil {
			return "", false
		}
		return vp, true
	}
	return "", false
}
