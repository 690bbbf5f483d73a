package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/onnwee/replay/internal/middleware"
	"github.com/onnwee/replay/internal/play"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: restrict origins once the web client's deploy origin is fixed
		return true
	},
}

// NowPlayingHandlers holds dependencies for the now-playing WebSocket feed.
type NowPlayingHandlers struct {
	broadcaster *play.Broadcaster
}

// NewNowPlayingHandlers creates a new NowPlayingHandlers instance.
func NewNowPlayingHandlers(broadcaster *play.Broadcaster) *NowPlayingHandlers {
	return &NowPlayingHandlers{broadcaster: broadcaster}
}

// Subscribe handles GET /v1/now-playing/ws - a WebSocket feed of accepted
// play events as they are recorded.
func (h *NowPlayingHandlers) Subscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.ErrorContext(ctx, "failed to upgrade websocket connection", "error", err)
		return
	}

	h.broadcaster.Subscribe(conn)

	requestID := middleware.GetRequestID(ctx)
	slog.InfoContext(ctx, "websocket client subscribed to now-playing feed",
		"request_id", requestID,
	)

	defer func() {
		h.broadcaster.Unsubscribe(conn)
		conn.Close()
		slog.InfoContext(ctx, "websocket client unsubscribed",
			"request_id", requestID,
		)
	}()

	// Clients don't send messages; reading only detects disconnection.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.WarnContext(ctx, "websocket connection closed unexpectedly", "error", err)
			}
			break
		}
	}
}
