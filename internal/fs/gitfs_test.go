package fs

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"testing"
)

// runGit runs a git command in dir and fails the test on error.
func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v failed: %v\n%s", args, err, out)
	}
}

// setupTestRepo creates a temporary git repository with sample files for testing.
func setupTestRepo(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	git := func(args ...string) { runGit(t, dir, args...) }

	git("init")
	git("config", "user.email", "test@test.com")
	git("config", "user.name", "Test")

	// Create files and directories
	docsDir := filepath.Join(dir, "docs")
	if err := os.MkdirAll(docsDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("# README\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(docsDir, "guide.md"), []byte("# Guide\n\nHello world.\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	git("add", "-A")
	git("commit", "-m", "initial commit")

	return dir
}

func TestGitFS_Stat_Root(t *testing.T) {
	dir := setupTestRepo(t)
	g := NewGitFS(dir, "HEAD")

	info, err := g.Stat("")
	if err != nil {
		t.Fatalf("Stat('') failed: %v", err)
	}
	if !info.IsDir {
		t.Error("expected root to be a directory")
	}
}

func TestGitFS_ReadDir_Root(t *testing.T) {
	dir := setupTestRepo(t)
	g := NewGitFS(dir, "HEAD")

	entries, err := g.ReadDir("")
	if err != nil {
		t.Fatalf("ReadDir('') failed: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected non-empty root directory")
	}

	names := make(map[string]bool)
	for _, e := range entries {
		names[e.Name] = true
		t.Logf("  entry: %s (dir=%v)", e.Name, e.IsDir)
	}

	if !names["README.md"] {
		t.Error("expected README.md in root entries")
	}
	if !names["docs"] {
		t.Error("expected docs directory in root entries")
	}
}

func TestGitFS_Stat_Dir(t *testing.T) {
	dir := setupTestRepo(t)
	g := NewGitFS(dir, "HEAD")

	info, err := g.Stat("docs")
	if err != nil {
		t.Fatalf("Stat('docs') failed: %v", err)
	}
	if !info.IsDir {
		t.Error("expected docs to be a directory")
	}
	if info.Kind() != "directory" {
		t.Errorf("expected kind directory, got %s", info.Kind())
	}
	if info.Name != "docs" {
		t.Errorf("expected name 'docs', got %q", info.Name)
	}
}

func TestGitFS_ReadDir_SubDir(t *testing.T) {
	dir := setupTestRepo(t)
	g := NewGitFS(dir, "HEAD")

	entries, err := g.ReadDir("docs")
	if err != nil {
		t.Fatalf("ReadDir('docs') failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry in docs, got %d", len(entries))
	}
	if entries[0].Name != "guide.md" {
		t.Errorf("expected guide.md, got %s", entries[0].Name)
	}
}

func TestGitFS_ReadFile(t *testing.T) {
	dir := setupTestRepo(t)
	g := NewGitFS(dir, "HEAD")

	content, err := g.ReadFile("docs/guide.md")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(content) == 0 {
		t.Error("expected non-empty file content")
	}
	t.Logf("content: %s", content)
}

func TestGitFS_ReadFile_NotExist(t *testing.T) {
	dir := setupTestRepo(t)
	g := NewGitFS(dir, "HEAD")

	_, err := g.ReadFile("nonexistent.md")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestGitFS_Stat_FileSize(t *testing.T) {
	dir := setupTestRepo(t)
	g := NewGitFS(dir, "HEAD")

	info, err := g.Stat("docs/guide.md")
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.IsDir {
		t.Error("expected guide.md to be a file")
	}
	if want := int64(len("# Guide\n\nHello world.\n")); info.Size != want {
		t.Errorf("expected size %d, got %d", want, info.Size)
	}
	if info.ModTime.IsZero() {
		t.Error("expected a commit time")
	}
}

func TestGitFS_Stat_NotExist(t *testing.T) {
	dir := setupTestRepo(t)
	g := NewGitFS(dir, "HEAD")

	if _, err := g.Stat("docs/missing.md"); !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestGitFS_OpenDir(t *testing.T) {
	dir := setupTestRepo(t)
	g := NewGitFS(dir, "HEAD")

	d, err := OpenDir(g, "docs")
	if err != nil {
		t.Fatalf("OpenDir failed: %v", err)
	}

	var names []string
	for ent, err := range d.Entries() {
		if err != nil {
			t.Fatalf("iteration failed: %v", err)
		}
		names = append(names, ent.Name)
		if ent.Info.Size == 0 {
			t.Errorf("expected size for %s", ent.Name)
		}
	}
	if len(names) != 1 || names[0] != "guide.md" {
		t.Errorf("unexpected entries: %v", names)
	}
	if !d.Closed() {
		t.Error("expected stream to be closed after iteration")
	}
}

func TestGitFS_UnquotedNames(t *testing.T) {
	dir := setupTestRepo(t)
	files := map[string]string{
		"café.md":    "# Café\n",
		" spaced.md": "spaced",
		`q"uote.md`:  "quote",
	}
	if err := os.MkdirAll(filepath.Join(dir, "intl"), 0o755); err != nil {
		t.Fatal(err)
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, "intl", name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	runGit(t, dir, "add", "-A")
	runGit(t, dir, "commit", "-m", "names that git quotes")

	g := NewGitFS(dir, "HEAD")
	d, err := OpenDir(g, "intl")
	if err != nil {
		t.Fatalf("OpenDir failed: %v", err)
	}

	seen := 0
	for ent, err := range d.Entries() {
		if err != nil {
			t.Fatalf("iteration failed: %v", err)
		}
		content, ok := files[ent.Name]
		if !ok {
			t.Errorf("unexpected entry name %q", ent.Name)
			continue
		}
		seen++
		if ent.Info.Size != int64(len(content)) {
			t.Errorf("%q: expected size %d, got %d", ent.Name, len(content), ent.Info.Size)
		}
		data, err := g.ReadFile("intl/" + ent.Name)
		if err != nil {
			t.Errorf("ReadFile(%q) failed: %v", ent.Name, err)
		} else if string(data) != content {
			t.Errorf("ReadFile(%q) = %q, want %q", ent.Name, data, content)
		}
	}
	if seen != len(files) {
		t.Errorf("expected %d entries, got %d", len(files), seen)
	}
}

func TestGitFS_OpenDir_NotADirectory(t *testing.T) {
	dir := setupTestRepo(t)
	g := NewGitFS(dir, "HEAD")

	if _, err := OpenDir(g, "does-not-exist"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error for a missing dir, got %v", err)
	}
	if _, err := g.ReadDir("docs/missing"); !os.IsNotExist(err) {
		t.Errorf("expected not-exist error from ReadDir, got %v", err)
	}

	_, err := OpenDir(g, "README.md")
	if !errors.Is(err, syscall.ENOTDIR) {
		t.Errorf("expected not-a-directory error for a file, got %v", err)
	}
}
