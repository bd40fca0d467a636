package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// ServeWS streams ledger events to one client.
// GET /api/v1/ws/ledger
func (h *Hub) ServeWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("⚠️ WebSocket upgrade failed", zap.Error(err))
		return
	}

	h.AddClient(conn)
	h.log.Info("📱 POS screen connected", zap.Int("clients", h.GetClientsCount()))

	defer func() {
		h.RemoveClient(conn)
		h.log.Info("📱 POS screen disconnected", zap.Int("clients", h.GetClientsCount()))
	}()

	// Reads only detect disconnects; clients do not send commands.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Warn("⚠️ WebSocket error", zap.Error(err))
			}
			break
		}
	}
}
