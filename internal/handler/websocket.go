package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/CageChen/dirhub/internal/watcher"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// WebSocket message types.
const (
	MsgTreeChange    = "treeChange"
	MsgMountsChanged = "mountsChanged"
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// WSHandler pushes tree changes to connected clients
type WSHandler struct {
	clients map[*websocket.Conn]*sync.Mutex
	mu      sync.RWMutex
}

// NewWSHandler creates a new WebSocket handler
func NewWSHandler() *WSHandler {
	return &WSHandler{
		clients: make(map[*websocket.Conn]*sync.Mutex),
	}
}

// HandleWS handles WebSocket upgrade and connection
func (h *WSHandler) HandleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer func() {
		h.removeClient(conn)
		_ = conn.Close()
	}()

	h.addClient(conn)

	// Clients only listen; reading detects the close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// OnTreeChange forwards a watcher event for a virtual path
func (h *WSHandler) OnTreeChange(event watcher.Event) {
	h.Broadcast(WSMessage{
		Type: MsgTreeChange,
		Payload: map[string]string{
			"event": event.Type.String(),
			"path":  event.Path,
		},
	})
}

// OnMountsChanged tells clients to refetch the mount table
func (h *WSHandler) OnMountsChanged() {
	h.Broadcast(WSMessage{Type: MsgMountsChanged})
}

// Clients returns the number of connected clients
func (h *WSHandler) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *WSHandler) addClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = &sync.Mutex{}
}

func (h *WSHandler) removeClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, conn)
}

// Broadcast sends msg to every connected client, dropping the ones that fail
func (h *WSHandler) Broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("ws: encoding %s message: %v", msg.Type, err)
		return
	}

	type client struct {
		conn *websocket.Conn
		mu   *sync.Mutex
	}
	h.mu.RLock()
	clients := make([]client, 0, len(h.clients))
	for conn, mu := range h.clients {
		clients = append(clients, client{conn, mu})
	}
	h.mu.RUnlock()

	for _, cl := range clients {
		// gorilla connections allow one concurrent writer
		cl.mu.Lock()
		err := cl.conn.WriteMessage(websocket.TextMessage, data)
		cl.mu.Unlock()
		if err != nil {
			h.removeClient(cl.conn)
		}
	}
}
