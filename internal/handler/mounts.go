package handler

import (
	iofs "io/fs"
	"net/http"
	"os"
	"path"
	"strconv"
	"strings"
	"sync"

	"github.com/CageChen/dirhub/internal/config"
	mfs "github.com/CageChen/dirhub/internal/fs"
	"github.com/CageChen/dirhub/internal/vfs"
	"github.com/gin-gonic/gin"
)

// TreeNode represents a file or directory in the tree
type TreeNode struct {
	Name     string      `json:"name"`
	Kind     string      `json:"kind"`
	Path     string      `json:"path"`
	Size     int64       `json:"size,omitempty"`
	Children []*TreeNode `json:"children,omitempty"`
}

// MountHandler handles the tree and mount management API
type MountHandler struct {
	mu       sync.Mutex
	cfg      *config.Config
	vfs      *vfs.VFS
	onChange []func()
}

// NewMountHandler creates a new mount handler
func NewMountHandler(cfg *config.Config, v *vfs.VFS) *MountHandler {
	return &MountHandler{cfg: cfg, vfs: v}
}

// OnChange registers a callback run after the mount table changes
func (h *MountHandler) OnChange(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onChange = append(h.onChange, fn)
}

// GetTree returns the tree below ?path= (default: the root). ?depth=N
// limits how many directory levels are expanded.
func (h *MountHandler) GetTree(c *gin.Context) {
	root := vfs.Clean(c.Query("path"))
	depth := -1
	if s := c.Query("depth"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid depth"})
			return
		}
		depth = n
	}

	info, err := h.vfs.Stat(root)
	if err != nil {
		writeError(c, err)
		return
	}
	top := &TreeNode{Name: info.Name, Kind: info.Kind(), Path: root}
	if top.Path == "" {
		top.Kind = "root"
	}

	nodes := map[string]*TreeNode{root: top}
	err = h.vfs.Walk(root, func(p string, ent *mfs.Dirent) error {
		parent := path.Dir(p)
		if parent == "." {
			parent = ""
		}
		node := &TreeNode{Name: ent.Name, Kind: ent.Info.Kind(), Path: p, Size: ent.Info.Size}
		if ent.IsDir() {
			node.Size = 0
		}
		nodes[parent].Children = append(nodes[parent].Children, node)
		nodes[p] = node

		if ent.IsDir() && depth > 0 && levels(root, p) >= depth {
			return iofs.SkipDir
		}
		return nil
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, top)
}

// levels counts the path elements of p below root.
func levels(root, p string) int {
	rest := strings.TrimPrefix(strings.TrimPrefix(p, root), "/")
	return strings.Count(rest, "/") + 1
}

// GetMounts returns the configured mounts and global excludes
func (h *MountHandler) GetMounts(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{
		"mounts":        h.cfg.Mounts,
		"globalExclude": h.cfg.Exclude,
	})
}

// AddMountRequest represents a request to add a mount
type AddMountRequest struct {
	Path    string   `json:"path" binding:"required"`
	Alias   string   `json:"alias"`
	GitRef  string   `json:"git_ref"`
	SubPath string   `json:"sub_path"`
	Exclude []string `json:"exclude"`
}

// AddMount adds a new mount to the configuration
func (h *MountHandler) AddMount(c *gin.Context) {
	var req AddMountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path is required"})
		return
	}

	// The path must be a directory on disk even for git_ref mounts
	info, err := os.Stat(req.Path)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path does not exist: " + req.Path})
		return
	}
	if !info.IsDir() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path is not a directory"})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.cfg.AddMount(req.Path, req.Alias, req.GitRef, req.SubPath, req.Exclude); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	added := h.cfg.Mounts[len(h.cfg.Mounts)-1]
	h.vfs.Reload(h.cfg)

	if req.SubPath != "" {
		if _, err := h.vfs.Stat(added.Alias); err != nil {
			h.cfg.RemoveMount(added.Alias)
			h.vfs.Reload(h.cfg)
			c.JSON(http.StatusBadRequest, gin.H{"error": "sub_path does not exist: " + req.SubPath})
			return
		}
	}

	h.commit(c, "mount added")
}

// UpdateMountRequest represents a request to update a mount (identified by alias)
type UpdateMountRequest struct {
	Alias   string   `json:"alias" binding:"required"`
	GitRef  string   `json:"git_ref"`
	SubPath string   `json:"sub_path"`
	Exclude []string `json:"exclude"`
}

// UpdateMount updates a mount's settings
func (h *MountHandler) UpdateMount(c *gin.Context) {
	var req UpdateMountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "alias is required"})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.cfg.UpdateMount(req.Alias, req.GitRef, req.SubPath, req.Exclude) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown mount: " + req.Alias})
		return
	}
	h.vfs.Reload(h.cfg)
	h.commit(c, "mount updated")
}

// RemoveMount removes a mount by ?alias=
func (h *MountHandler) RemoveMount(c *gin.Context) {
	alias := c.Query("alias")
	if alias == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "alias is required"})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.cfg.RemoveMount(alias) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown mount: " + alias})
		return
	}
	h.vfs.Reload(h.cfg)
	h.commit(c, "mount removed")
}

// UpdateGlobalExcludeRequest represents a request to update global excludes
type UpdateGlobalExcludeRequest struct {
	Exclude []string `json:"exclude"`
}

// UpdateGlobalExclude updates the global exclude patterns
func (h *MountHandler) UpdateGlobalExclude(c *gin.Context) {
	var req UpdateGlobalExcludeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.cfg.SetGlobalExclude(req.Exclude)
	h.vfs.Reload(h.cfg)
	h.commit(c, "global excludes updated")
}

// commit saves the configuration, runs the change callbacks and answers
// with the new mount table. Callers hold h.mu.
func (h *MountHandler) commit(c *gin.Context, message string) {
	if err := h.cfg.Save(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to save config: " + err.Error(),
		})
		return
	}
	for _, fn := range h.onChange {
		fn()
	}
	c.JSON(http.StatusOK, gin.H{
		"message":       message,
		"mounts":        h.cfg.Mounts,
		"globalExclude": h.cfg.Exclude,
	})
}
