// Package main is the entry point for the dirhub server.
package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/CageChen/dirhub/internal/config"
	"github.com/CageChen/dirhub/internal/handler"
	"github.com/CageChen/dirhub/internal/vfs"
	"github.com/CageChen/dirhub/internal/watcher"
	"github.com/gin-gonic/gin"
)

//go:embed web/*
var webFS embed.FS

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("dirhub - virtual directory server")
	log.Printf("Config file: %s", cfg.GetConfigFilePath())
	log.Printf("Serving %d mount(s):", len(cfg.Mounts))
	for i, m := range cfg.Mounts {
		if m.GitRef != "" {
			log.Printf("  [%d] %s -> %s (git ref: %s)", i, m.Alias, m.Path, m.GitRef)
		} else {
			log.Printf("  [%d] %s -> %s", i, m.Alias, m.Path)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	v := vfs.New(cfg)
	defer v.Handles().CloseAll()
	h := handler.New(cfg, v)

	// Setup file watcher if enabled
	if cfg.Watch {
		w, err := watcher.New(v)
		if err != nil {
			log.Printf("Warning: failed to create file watcher: %v", err)
		} else {
			w.OnChange(h.WS.OnTreeChange)
			h.Mount.OnChange(w.Refresh)
			if err := w.Start(); err != nil {
				log.Printf("Warning: failed to start file watcher: %v", err)
			}
			defer func() { _ = w.Stop() }()
			log.Printf("File watcher enabled")
		}
	}

	if cfg.HandleTTL > 0 {
		go expireHandles(ctx, v.Handles(), cfg.HandleTTL)
	}

	webContent, err := fs.Sub(webFS, "web")
	if err != nil {
		log.Fatalf("Failed to load web assets: %v", err)
	}
	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: h.Router(http.FS(webContent)),
	}

	// Open browser if requested
	if cfg.Open {
		go openBrowser(fmt.Sprintf("http://localhost:%d", cfg.Port))
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutdown: %v", err)
		}
	}()

	log.Printf("Server starting at: http://localhost:%d", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed: %v", err)
	}
	log.Printf("Server stopped")
}

// expireHandles closes directory handles opened more than ttl ago.
func expireHandles(ctx context.Context, handles *vfs.Handles, ttl time.Duration) {
	interval := ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := handles.Expire(now.Add(-ttl)); n > 0 {
				log.Printf("Expired %d directory handle(s)", n)
			}
		}
	}
}

func openBrowser(url string) {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "windows":
		cmd = "rundll32"
		args = []string{"url.dll,FileProtocolHandler", url}
	case "darwin":
		cmd = "open"
		args = []string{url}
	default: // linux, etc.
		cmd = "xdg-open"
		args = []string{url}
	}

	_ = exec.Command(cmd, args...).Start()
}
