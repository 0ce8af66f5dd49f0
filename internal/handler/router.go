package handler

import (
	"net/http"

	"github.com/CageChen/dirhub/internal/config"
	"github.com/CageChen/dirhub/internal/vfs"
	"github.com/gin-gonic/gin"
)

// Handlers groups the API handlers served by one router
type Handlers struct {
	Dir   *DirHandler
	File  *FileHandler
	Mount *MountHandler
	WS    *WSHandler
}

// New creates the handlers for v. Mount changes are pushed to WebSocket
// clients.
func New(cfg *config.Config, v *vfs.VFS) *Handlers {
	h := &Handlers{
		Dir:   NewDirHandler(v),
		File:  NewFileHandler(cfg, v),
		Mount: NewMountHandler(cfg, v),
		WS:    NewWSHandler(),
	}
	h.Mount.OnChange(h.WS.OnMountsChanged)
	return h
}

// Router builds the gin engine. Unmatched paths are served from static
// when it is not nil.
func (h *Handlers) Router(static http.FileSystem) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	api := r.Group("/api")
	{
		// Directory streams
		api.GET("/list/*path", h.Dir.List)
		api.GET("/dirs", h.Dir.Handles)
		api.POST("/dirs", h.Dir.Open)
		api.GET("/dirs/:id/next", h.Dir.Next)
		api.DELETE("/dirs/:id", h.Dir.Close)

		// Tree and file APIs
		api.GET("/tree", h.Mount.GetTree)
		api.GET("/stat/*path", h.File.Stat)
		api.GET("/raw/*path", h.File.GetRaw)
		api.GET("/preview/*path", h.File.GetPreview)
		api.GET("/ws", h.WS.HandleWS)

		// Mount management APIs
		api.GET("/mounts", h.Mount.GetMounts)
		api.POST("/mounts", h.Mount.AddMount)
		api.PUT("/mounts", h.Mount.UpdateMount)
		api.DELETE("/mounts", h.Mount.RemoveMount)
		api.PUT("/exclude", h.Mount.UpdateGlobalExclude)
	}

	if static != nil {
		r.NoRoute(gin.WrapH(http.FileServer(static)))
	}
	return r
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
