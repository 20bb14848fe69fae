package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The UI is served from another origin during development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleStream handles GET /api/ws. Every story change is pushed as a
// snapshot; the client sends nothing but pongs.
func (h *StoryHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("API: Websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	updates, cancel := h.story.Subscribe()
	defer cancel()

	// The reader only services control frames and notices the close.
	closed := make(chan struct{})
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	slog.Debug("API: Websocket client connected", "remote", r.RemoteAddr)
	for {
		select {
		case snap := <-updates:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(snap); err != nil {
				slog.Debug("API: Websocket write failed", "error", err)
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			slog.Debug("API: Websocket client disconnected", "remote", r.RemoteAddr)
			return
		case <-r.Context().Done():
			return
		}
	}
}
