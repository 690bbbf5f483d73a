// Package play provides WebSocket broadcasting of accepted play events.
package play

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// Broadcaster fans accepted play events out to WebSocket subscribers for
// now-playing feeds. It participates in the recorder pipeline as a derived
// view so broadcast failures never affect event acceptance.
type Broadcaster struct {
	mu          sync.RWMutex
	connections map[*websocket.Conn]bool
}

// NewBroadcaster creates a new play event broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		connections: make(map[*websocket.Conn]bool),
	}
}

// Subscribe registers a WebSocket connection for play event notifications.
func (b *Broadcaster) Subscribe(conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connections[conn] = true
}

// Unsubscribe removes a WebSocket connection.
func (b *Broadcaster) Unsubscribe(conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.connections, conn)
}

// ConnectionCount returns the number of active subscriber connections.
func (b *Broadcaster) ConnectionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.connections)
}

// Name implements DerivedView.
func (b *Broadcaster) Name() string {
	return "now_playing"
}

// Apply broadcasts an accepted event to all subscribers.
func (b *Broadcaster) Apply(_ context.Context, event *Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.connections) == 0 {
		return nil
	}

	// Serialize once
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	for conn := range b.connections {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			slog.Warn("failed to send play event to websocket client",
				"error", err,
				"event_id", event.ID,
			)
			// Connection will be cleaned up when the client disconnects
		}
	}
	return nil
}

// InvalidateUser implements DerivedView. The broadcast feed holds no state,
// so there is nothing to invalidate.
func (b *Broadcaster) InvalidateUser(context.Context, string) error {
	return nil
}
