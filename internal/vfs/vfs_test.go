package vfs

import (
	iofs "io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/CageChen/dirhub/internal/config"
	"github.com/CageChen/dirhub/internal/fs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func setupVFS(t *testing.T) (*VFS, *config.Config, string, string) {
	t.Helper()
	docs := t.TempDir()
	writeFile(t, docs, "README.md", "# Docs\n")
	writeFile(t, docs, "b.md", "b")
	writeFile(t, docs, "A.md", "a")
	writeFile(t, docs, "guide/intro.md", "# Intro\n")
	writeFile(t, docs, "guide/drafts/wip.md", "wip")
	writeFile(t, docs, "node_modules/pkg/index.js", "x")
	writeFile(t, docs, "scratch.tmp", "tmp")

	notes := t.TempDir()
	writeFile(t, notes, "todo.md", "- [ ] write tests\n")

	cfg := config.DefaultConfig()
	cfg.Exclude = []string{"node_modules", "*.tmp"}
	cfg.Mounts = []config.Mount{
		{Path: docs, Alias: "docs", Exclude: []string{"guide/drafts"}},
		{Path: notes, Alias: "notes"},
	}
	return New(cfg), cfg, docs, notes
}

func names(t *testing.T, d *fs.Dir) []string {
	t.Helper()
	var out []string
	for ent, err := range d.Entries() {
		require.NoError(t, err)
		out = append(out, ent.Name)
	}
	return out
}

func TestVFS_RootListsMounts(t *testing.T) {
	v, _, _, _ := setupVFS(t)

	d, err := v.Opendir("/")
	require.NoError(t, err)
	assert.Equal(t, "", d.Path())

	ent, err := d.Read()
	require.NoError(t, err)
	assert.Equal(t, "docs", ent.Name)
	assert.True(t, ent.IsDir())

	want, err := v.Stat("docs")
	require.NoError(t, err)
	assert.Equal(t, want, ent.Info)
	assert.Equal(t, "docs", ent.Info.Name)

	assert.Equal(t, []string{"notes"}, names(t, d))
	assert.True(t, d.Closed())
}

func TestVFS_OpendirFiltersAndSorts(t *testing.T) {
	v, _, _, _ := setupVFS(t)

	d, err := v.Opendir("docs")
	require.NoError(t, err)
	assert.Equal(t, []string{"guide", "A.md", "b.md", "README.md"}, names(t, d))

	d, err = v.Opendir("docs/guide")
	require.NoError(t, err)
	assert.Equal(t, []string{"intro.md"}, names(t, d), "mount excludes hide guide/drafts")
}

func TestVFS_SortOrders(t *testing.T) {
	v, cfg, _, _ := setupVFS(t)

	cfg.Sort = config.SortName
	v.Reload(cfg)
	d, err := v.Opendir("docs")
	require.NoError(t, err)
	assert.Equal(t, []string{"A.md", "b.md", "guide", "README.md"}, names(t, d))

	cfg.Sort = config.SortNone
	v.Reload(cfg)
	d, err = v.Opendir("docs")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A.md", "b.md", "guide", "README.md"}, names(t, d))
}

func TestVFS_ExcludedPathsAreHidden(t *testing.T) {
	v, _, _, _ := setupVFS(t)

	_, err := v.Stat("docs/node_modules/pkg/index.js")
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = v.ReadFile("docs/scratch.tmp")
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = v.Opendir("docs/guide/drafts")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestVFS_StatAndReadFile(t *testing.T) {
	v, _, _, _ := setupVFS(t)

	root, err := v.Stat("")
	require.NoError(t, err)
	assert.True(t, root.IsDir)

	info, err := v.Stat("/notes/todo.md")
	require.NoError(t, err)
	assert.Equal(t, "todo.md", info.Name)
	assert.False(t, info.IsDir)

	data, err := v.ReadFile("notes/todo.md")
	require.NoError(t, err)
	assert.Contains(t, string(data), "write tests")

	_, err = v.Stat("missing/x")
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = v.ReadFile("")
	assert.Error(t, err)
}

func TestVFS_SubPathMount(t *testing.T) {
	_, _, docs, _ := setupVFS(t)
	cfg := config.DefaultConfig()
	cfg.Mounts = []config.Mount{{Path: docs, Alias: "guide", SubPath: "guide"}}
	v := New(cfg)

	d, err := v.Opendir("guide")
	require.NoError(t, err)
	assert.Equal(t, []string{"drafts", "intro.md"}, names(t, d))
}

func TestVFS_Walk(t *testing.T) {
	v, _, _, _ := setupVFS(t)

	var seen []string
	err := v.Walk("", func(p string, ent *fs.Dirent) error {
		seen = append(seen, p)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"docs",
		"docs/guide",
		"docs/guide/intro.md",
		"docs/A.md",
		"docs/b.md",
		"docs/README.md",
		"notes",
		"notes/todo.md",
	}, seen)
}

func TestVFS_WalkSkipDirAndStop(t *testing.T) {
	v, _, _, _ := setupVFS(t)

	var seen []string
	err := v.Walk("docs", func(p string, ent *fs.Dirent) error {
		seen = append(seen, p)
		if ent.IsDir() {
			return iofs.SkipDir
		}
		return nil
	})
	require.NoError(t, err)
	assert.NotContains(t, seen, "docs/guide/intro.md")
	assert.Contains(t, seen, "docs/guide")

	stop := assert.AnError
	err = v.Walk("docs", func(p string, ent *fs.Dirent) error { return stop })
	assert.ErrorIs(t, err, stop)
}

func TestVFS_VirtualPath(t *testing.T) {
	v, _, docs, _ := setupVFS(t)

	vp, ok := v.VirtualPath(filepath.Join(docs, "guide", "intro.md"))
	require.True(t, ok)
	assert.Equal(t, "docs/guide/intro.md", vp)

	vp, ok = v.VirtualPath(docs)
	require.True(t, ok)
	assert.Equal(t, "docs", vp)

	_, ok = v.VirtualPath(filepath.Join(docs, "scratch.tmp"))
	assert.False(t, ok)

	_, ok = v.VirtualPath(t.TempDir())
	assert.False(t, ok)
}

func TestHandles_Lifecycle(t *testing.T) {
	v, _, _, _ := setupVFS(t)
	h := v.Handles()

	id, err := h.Open("notes")
	require.NoError(t, err)
	assert.Equal(t, 1, h.Len())

	ent, dir, err := h.Read(id)
	require.NoError(t, err)
	assert.Equal(t, "todo.md", ent.Name)
	assert.Equal(t, "notes", dir)

	ent, _, err = h.Read(id)
	require.NoError(t, err)
	assert.Nil(t, ent)

	require.NoError(t, h.Close(id))
	assert.Equal(t, 0, h.Len(), "close hook drops the handle")

	_, _, err = h.Read(id)
	assert.True(t, fs.IsDirClosed(err))
	assert.True(t, fs.IsDirClosed(h.Close(id)))
}

func TestHandles_Limit(t *testing.T) {
	v, cfg, _, _ := setupVFS(t)
	cfg.MaxOpenDirs = 1
	v.Reload(cfg)
	h := v.Handles()

	id, err := h.Open("docs")
	require.NoError(t, err)

	_, err = h.Open("notes")
	assert.ErrorIs(t, err, ErrTooManyOpenDirs)

	require.NoError(t, h.Close(id))
	_, err = h.Open("notes")
	assert.NoError(t, err)
}

func TestHandles_RegisterWhenFullClosesStream(t *testing.T) {
	v, cfg, _, _ := setupVFS(t)
	cfg.MaxOpenDirs = 1
	v.Reload(cfg)
	h := v.Handles()

	_, err := h.Open("docs")
	require.NoError(t, err)

	hooks := 0
	d, err := v.Opendir("notes", fs.WithOnClose(func() { hooks++ }))
	require.NoError(t, err)

	assert.ErrorIs(t, h.register("late", d), ErrTooManyOpenDirs)
	assert.True(t, d.Closed())
	assert.Equal(t, 1, hooks)
	assert.Equal(t, 1, h.Len())
}

func TestHandles_OpenMissing(t *testing.T) {
	v, _, _, _ := setupVFS(t)

	_, err := v.Handles().Open("docs/nope")
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, 0, v.Handles().Len())
}

func TestHandles_ExpireAndCloseAll(t *testing.T) {
	v, _, _, _ := setupVFS(t)
	h := v.Handles()

	_, err := h.Open("docs")
	require.NoError(t, err)
	_, err = h.Open("notes")
	require.NoError(t, err)
	require.Len(t, h.List(), 2)

	assert.Equal(t, 0, h.Expire(time.Now().Add(-time.Hour)))
	assert.Equal(t, 2, h.Expire(time.Now().Add(time.Second)))
	assert.Equal(t, 0, h.Len())

	_, err = h.Open("docs")
	require.NoError(t, err)
	h.CloseAll()
	assert.Equal(t, 0, h.Len())
}
