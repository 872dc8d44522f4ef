package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"promofeed/internal/attribution"
)

// LiveBroadcaster pushes recorder counter snapshots to websocket clients.
type LiveBroadcaster struct {
	clients  map[*websocket.Conn]struct{}
	mu       sync.Mutex
	upgrader websocket.Upgrader
	logger   *log.Logger
}

// NewLiveBroadcaster creates a broadcaster with no connected clients.
func NewLiveBroadcaster(logger *log.Logger) *LiveBroadcaster {
	if logger == nil {
		logger = log.Default()
	}
	return &LiveBroadcaster{
		clients:  make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		logger:   logger,
	}
}

// BroadcastStats sends a stats snapshot to every connected client.
// Clients that fail to receive are dropped.
func (b *LiveBroadcaster) BroadcastStats(stats attribution.Stats) {
	b.mu.Lock()
	defer b.mu.Unlock()

	msg, err := json.Marshal(stats)
	if err != nil {
		b.logger.Printf("httpapi: failed to marshal live stats: %v", err)
		return
	}

	for c := range b.clients {
		if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
			b.logger.Printf("httpapi: websocket write error: %v", err)
			c.Close()
			delete(b.clients, c)
		}
	}
}

// ClientCount returns the number of connected clients.
func (b *LiveBroadcaster) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Handler upgrades the connection and registers the client.
func (b *LiveBroadcaster) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := b.upgrader.Upgrade(w, r, nil)
		if err != nil {
			b.logger.Printf("httpapi: websocket upgrade error: %v", err)
			return
		}

		b.mu.Lock()
		b.clients[conn] = struct{}{}
		b.mu.Unlock()

		// Read loop keeps the connection alive and detects disconnects.
		go func() {
			defer func() {
				b.mu.Lock()
				delete(b.clients, conn)
				b.mu.Unlock()
				conn.Close()
			}()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					break
				}
			}
		}()
	}
}
