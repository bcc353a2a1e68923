package api

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"offline-sync-engine/internal/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The server binds to loopback; the UI connects locally.
		return true
	},
}

type statusMessage struct {
	Status string `json:"status"`
}

// StatusStream pushes every sync status transition to the connected UI
// client, starting with the current state.
func (h *Handler) StatusStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	id, ch := h.coord.Subscribe()
	defer h.coord.Unsubscribe(id)
	defer conn.Close()

	// Reader goroutine: its only job is noticing the peer going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	if err := conn.WriteJSON(statusMessage{Status: string(h.coord.Status())}); err != nil {
		return
	}

	for {
		select {
		case <-done:
			return
		case status, ok := <-ch:
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(statusMessage{Status: string(status)}); err != nil {
				return
			}
		}
	}
}
