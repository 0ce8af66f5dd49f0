package fs

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// GitFS implements FileSystem by reading from a git ref (branch, tag, or commit).
type GitFS struct {
	repoPath string
	ref      string
}

// NewGitFS creates a GitFS that reads files from the given ref in the repository at repoPath.
func NewGitFS(repoPath, ref string) *GitFS {
	return &GitFS{repoPath: repoPath, ref: ref}
}

// treeEntry is one record of `git ls-tree -z -l` output:
// "<mode> <type> <hash> <size>\t<name>"
type treeEntry struct {
	mode    string
	objType string
	size    int64
	name    string
}

func parseTreeLine(line string) (treeEntry, bool) {
	tab := strings.IndexByte(line, '\t')
	if tab < 0 {
		return treeEntry{}, false
	}
	fields := strings.Fields(line[:tab])
	if len(fields) < 3 {
		return treeEntry{}, false
	}
	te := treeEntry{mode: fields[0], objType: fields[1], name: line[tab+1:]}
	if len(fields) >= 4 && fields[3] != "-" {
		te.size, _ = strconv.ParseInt(fields[3], 10, 64)
	}
	return te, true
}

// fileMode maps a git tree entry mode onto os.FileMode.
func (te treeEntry) fileMode() os.FileMode {
	switch te.mode {
	case "040000":
		return os.ModeDir | 0o755
	case "100755":
		return 0o755
	case "120000":
		return os.ModeSymlink | 0o777
	case "160000":
		// submodule commit, shown as an empty directory
		return os.ModeDir | 0o555
	default:
		return 0o644
	}
}

func (g *GitFS) git(args ...string) (string, error) {
	cmd := exec.Command("git", append([]string{"-C", g.repoPath}, args...)...)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", err
	}
	return string(out), nil
}

// lsTree runs ls-tree with NUL-terminated records so names come back
// unquoted and byte for byte.
func (g *GitFS) lsTree(args ...string) ([]treeEntry, error) {
	out, err := g.git(append([]string{"ls-tree", "-z", "-l", g.ref}, args...)...)
	if err != nil {
		return nil, os.ErrNotExist
	}
	var entries []treeEntry
	for _, rec := range strings.Split(out, "\x00") {
		if te, ok := parseTreeLine(rec); ok {
			entries = append(entries, te)
		}
	}
	return entries, nil
}

// Join joins a directory and an entry name within the tree.
func (g *GitFS) Join(dir, name string) string {
	return JoinSlash(dir, name)
}

// ReadFile reads the contents of the file at the given path from the git ref.
func (g *GitFS) ReadFile(path string) ([]byte, error) {
	objPath := strings.Trim(path, "/")
	if objPath == "" || objPath == "." {
		return nil, fmt.Errorf("cannot read directory as file")
	}
	out, err := g.git("show", g.ref+":"+objPath)
	if err != nil {
		if strings.Contains(err.Error(), "not exist") {
			return nil, os.ErrNotExist
		}
		return nil, err
	}
	return []byte(out), nil
}

// Stat returns metadata for the file or directory at the given path in the git ref.
func (g *GitFS) Stat(path string) (FileInfo, error) {
	objPath := strings.Trim(path, "/")
	if objPath == "" || objPath == "." {
		if _, err := g.git("rev-parse", "--verify", g.ref); err != nil {
			return FileInfo{}, os.ErrNotExist
		}
		return FileInfo{
			Name:    g.ref,
			IsDir:   true,
			Mode:    os.ModeDir | 0o755,
			ModTime: g.modTime(""),
		}, nil
	}

	entries, err := g.lsTree(objPath)
	if err != nil {
		return FileInfo{}, err
	}
	for _, te := range entries {
		if te.name != objPath {
			continue
		}
		mode := te.fileMode()
		return FileInfo{
			Name:    baseName(objPath),
			IsDir:   mode.IsDir(),
			Mode:    mode,
			Size:    te.size,
			ModTime: g.modTime(objPath),
		}, nil
	}
	return FileInfo{}, os.ErrNotExist
}

// ReadDir lists the immediate children of the directory at the given path in the git ref.
func (g *GitFS) ReadDir(path string) ([]DirEntry, error) {
	objPath := strings.Trim(path, "/")
	if objPath == "." {
		objPath = ""
	}

	var entries []treeEntry
	var err error
	if objPath == "" {
		entries, err = g.lsTree()
	} else {
		// ls-tree prints nothing for a missing path or a file
		info, serr := g.Stat(objPath)
		if serr != nil {
			return nil, &os.PathError{Op: "readdir", Path: objPath, Err: serr}
		}
		if !info.IsDir {
			return nil, &os.PathError{Op: "readdir", Path: objPath, Err: syscall.ENOTDIR}
		}
		entries, err = g.lsTree(objPath + "/")
	}
	if err != nil {
		return nil, err
	}

	result := make([]DirEntry, 0, len(entries))
	for _, te := range entries {
		result = append(result, DirEntry{
			Name:  baseName(te.name),
			IsDir: te.fileMode().IsDir(),
		})
	}
	return result, nil
}

func (g *GitFS) modTime(path string) time.Time {
	args := []string{"log", "-1", "--format=%ct", g.ref}
	if path != "" {
		args = append(args, "--", path)
	}
	out, err := g.git(args...)
	if err != nil {
		return time.Time{}
	}
	sec, err := strconv.ParseInt(strings.TrimSpace(out), 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}

func baseName(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}
