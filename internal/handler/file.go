package handler

import (
	"net/http"
	"time"

	"github.com/CageChen/dirhub/internal/config"
	"github.com/CageChen/dirhub/internal/markdown"
	"github.com/CageChen/dirhub/internal/vfs"
	"github.com/gin-gonic/gin"
)

// PreviewResponse represents the rendered preview of a file
type PreviewResponse struct {
	Path    string             `json:"path"`
	Title   string             `json:"title"`
	Summary string             `json:"summary"`
	HTML    string             `json:"html"`
	TOC     []markdown.TOCItem `json:"toc"`
	ModTime time.Time          `json:"modTime"`
}

// FileHandler serves metadata, raw content and previews of single files
type FileHandler struct {
	cfg      *config.Config
	vfs      *vfs.VFS
	renderer *markdown.Renderer
}

// NewFileHandler creates a new file handler
func NewFileHandler(cfg *config.Config, v *vfs.VFS) *FileHandler {
	return &FileHandler{
		cfg:      cfg,
		vfs:      v,
		renderer: markdown.NewRenderer(),
	}
}

// Stat returns the metadata of a file or directory
func (h *FileHandler) Stat(c *gin.Context) {
	p := vfs.Clean(c.Param("path"))
	info, err := h.vfs.Stat(p)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"name":    info.Name,
		"path":    p,
		"kind":    info.Kind(),
		"mode":    info.Mode.String(),
		"size":    info.Size,
		"modTime": info.ModTime,
	})
}

// GetRaw returns the raw file content
func (h *FileHandler) GetRaw(c *gin.Context) {
	p := vfs.Clean(c.Param("path"))
	info, err := h.vfs.Stat(p)
	if err != nil {
		writeError(c, err)
		return
	}
	if info.IsDir {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path is a directory"})
		return
	}

	content, err := h.vfs.ReadFile(p)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, http.DetectContentType(content), content)
}

// GetPreview returns the rendered HTML for a markdown file
func (h *FileHandler) GetPreview(c *gin.Context) {
	p := vfs.Clean(c.Param("path"))
	if !h.cfg.IsPreviewable(p) {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "no preview for this file type"})
		return
	}

	info, err := h.vfs.Stat(p)
	if err != nil {
		writeError(c, err)
		return
	}
	if info.IsDir {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path is a directory"})
		return
	}

	content, err := h.vfs.ReadFile(p)
	if err != nil {
		writeError(c, err)
		return
	}

	result, err := h.renderer.Render(content)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to render markdown: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, PreviewResponse{
		Path:    p,
		Title:   result.Title,
		Summary: result.Summary,
		HTML:    result.HTML,
		TOC:     result.TOC,
		ModTime: info.ModTime,
	})
}
