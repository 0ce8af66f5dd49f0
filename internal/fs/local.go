package fs

import (
	"os"
	"path"
	"path/filepath"
)

// LocalFS implements FileSystem on top of a directory on disk.
type LocalFS struct {
	root string
}

// NewLocalFS creates a LocalFS rooted at the given directory.
func NewLocalFS(root string) *LocalFS {
	return &LocalFS{root: root}
}

// Root returns the directory the filesystem is rooted at.
func (l *LocalFS) Root() string {
	return l.root
}

func (l *LocalFS) abs(p string) string {
	// Cleaning against "/" keeps ".." from climbing above the root.
	clean := path.Clean("/" + filepath.ToSlash(p))
	if clean == "/" {
		return l.root
	}
	return filepath.Join(l.root, filepath.FromSlash(clean))
}

// Join joins a directory and an entry name, both relative to the root.
func (l *LocalFS) Join(dir, name string) string {
	return JoinSlash(dir, name)
}

// ReadFile reads the contents of the file at the given path relative to the root.
func (l *LocalFS) ReadFile(p string) ([]byte, error) {
	return os.ReadFile(l.abs(p))
}

// Stat returns metadata for the entry at the given path relative to the root.
// Symbolic links are reported as links, not followed.
func (l *LocalFS) Stat(p string) (FileInfo, error) {
	info, err := os.Lstat(l.abs(p))
	if err != nil {
		return FileInfo{}, err
	}
	return FileInfo{
		Name:    info.Name(),
		IsDir:   info.IsDir(),
		Mode:    info.Mode(),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// ReadDir lists the immediate children of the directory at the given path relative to the root.
func (l *LocalFS) ReadDir(p string) ([]DirEntry, error) {
	entries, err := os.ReadDir(l.abs(p))
	if err != nil {
		return nil, err
	}
	result := make([]DirEntry, len(entries))
	for i, e := range entries {
		result[i] = DirEntry{
			Name:  e.Name(),
			IsDir: e.IsDir(),
		}
	}
	return result, nil
}
