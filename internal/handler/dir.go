// Package handler provides HTTP handlers for the dirhub REST API.
package handler

import (
	"errors"
	iofs "io/fs"
	"net/http"
	"strconv"
	"time"

	mfs "github.com/CageChen/dirhub/internal/fs"
	"github.com/CageChen/dirhub/internal/vfs"
	"github.com/gin-gonic/gin"
)

// EntryResponse is the JSON form of a directory entry.
type EntryResponse struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Kind    string    `json:"kind"`
	Mode    string    `json:"mode"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
}

func newEntryResponse(dir string, ent *mfs.Dirent) EntryResponse {
	return EntryResponse{
		Name:    ent.Name,
		Path:    mfs.JoinSlash(dir, ent.Name),
		Kind:    ent.Info.Kind(),
		Mode:    ent.Info.Mode.String(),
		Size:    ent.Info.Size,
		ModTime: ent.Info.ModTime,
	}
}

// writeError maps filesystem errors onto HTTP status codes.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case mfs.IsDirClosed(err):
		status = http.StatusNotFound
	case errors.Is(err, vfs.ErrTooManyOpenDirs):
		status = http.StatusTooManyRequests
	case errors.Is(err, iofs.ErrNotExist):
		status = http.StatusNotFound
	case errors.Is(err, iofs.ErrPermission):
		status = http.StatusForbidden
	}

	body := gin.H{"error": err.Error()}
	var fsErr *mfs.Error
	if errors.As(err, &fsErr) && fsErr.Code != "" {
		body["code"] = fsErr.Code
	}
	c.JSON(status, body)
}

// DirHandler serves directory listings and open directory handles.
type DirHandler struct {
	vfs *vfs.VFS
}

// NewDirHandler creates a new directory handler
func NewDirHandler(v *vfs.VFS) *DirHandler {
	return &DirHandler{vfs: v}
}

// List returns the entries of a directory. With ?limit=N only the first N
// entries are returned and the response is marked truncated.
func (h *DirHandler) List(c *gin.Context) {
	limit := -1
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	d, err := h.vfs.Opendir(c.Param("path"))
	if err != nil {
		writeError(c, err)
		return
	}

	entries := []EntryResponse{}
	truncated := false
	for ent, err := range d.Entries() {
		if err != nil {
			writeError(c, err)
			return
		}
		if limit >= 0 && len(entries) == limit {
			truncated = true
			break
		}
		entries = append(entries, newEntryResponse(d.Path(), ent))
	}

	c.JSON(http.StatusOK, gin.H{
		"path":      d.Path(),
		"entries":   entries,
		"truncated": truncated,
	})
}

// OpenDirRequest represents a request to open a directory handle
type OpenDirRequest struct {
	Path string `json:"path"`
}

// Open opens a directory handle that is read one entry at a time.
func (h *DirHandler) Open(c *gin.Context) {
	var req OpenDirRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	id, err := h.vfs.Handles().Open(req.Path)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":   id,
		"path": vfs.Clean(req.Path),
	})
}

// Next reads the next entry of an open handle. An exhausted handle answers
// {"done": true} until it is closed.
func (h *DirHandler) Next(c *gin.Context) {
	ent, dir, err := h.vfs.Handles().Read(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if ent == nil {
		c.JSON(http.StatusOK, gin.H{"done": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"done":  false,
		"entry": newEntryResponse(dir, ent),
	})
}

// Close closes an open handle. Closing it again fails.
func (h *DirHandler) Close(c *gin.Context) {
	if err := h.vfs.Handles().Close(c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Handles lists the open handles.
func (h *DirHandler) Handles(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"handles": h.vfs.Handles().List()})
}
