// Package fs provides filesystem backends (local disk, git refs) and the
// directory stream used to hand out listings one entry at a time.
package fs

import (
	"os"
	"path"
	"strings"
	"time"
)

// FileInfo holds file metadata.
type FileInfo struct {
	Name    string
	IsDir   bool
	Mode    os.FileMode
	Size    int64
	ModTime time.Time
}

// Kind returns a short name for the entry type.
func (fi FileInfo) Kind() string {
	switch {
	case fi.Mode&os.ModeSymlink != 0:
		return "symlink"
	case fi.IsDir:
		return "directory"
	case fi.Mode&os.ModeNamedPipe != 0:
		return "fifo"
	case fi.Mode&os.ModeSocket != 0:
		return "socket"
	case fi.Mode&os.ModeDevice != 0:
		return "device"
	default:
		return "file"
	}
}

// DirEntry is a name as listed by ReadDir, before any metadata lookup.
type DirEntry struct {
	Name  string
	IsDir bool
}

// Stater is the part of a filesystem the opendir factory needs.
type Stater interface {
	Stat(path string) (FileInfo, error)
	Join(dir, name string) string
}

// FileSystem abstracts file operations so callers can work with the local
// filesystem, a git object database or the virtual tree of mounts.
type FileSystem interface {
	Stater
	ReadFile(path string) ([]byte, error)
	ReadDir(path string) ([]DirEntry, error)
}

// JoinSlash joins a relative slash-separated directory with a name.
// The empty string and "." both denote the root.
func JoinSlash(dir, name string) string {
	dir = strings.Trim(dir, "/")
	if dir == "." {
		dir = ""
	}
	return strings.TrimPrefix(path.Join(dir, name), "/")
}

// OpenDir lists dir on fsys and returns a stream over its entries in the
// order the backend reports them.
func OpenDir(fsys FileSystem, dir string, opts ...DirOption) (*Dir, error) {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, NewError(OpOpendir, dir, err)
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return Opendir(fsys, dir, names, opts...), nil
}
