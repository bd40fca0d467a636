package api

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"partsledger/internal/logger"
	"partsledger/internal/models"
)

// hubWriteWait bounds one write to one client. A screen that stops reading
// is dropped instead of stalling delivery to the others.
const hubWriteWait = 10 * time.Second

// Hub fans committed ledger events out to connected POS screens.
type Hub struct {
	clients   map[*websocket.Conn]bool
	broadcast chan []byte
	mutex     sync.RWMutex
	writeWait time.Duration
	log       *zap.Logger
}

func NewHub() *Hub {
	return &Hub{
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan []byte, 256),
		writeWait: hubWriteWait,
		log:       logger.Named("ws"),
	}
}

// Run delivers queued messages until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			return
		case msg := <-h.broadcast:
			var dead []*websocket.Conn
			h.mutex.RLock()
			for client := range h.clients {
				if err := h.write(client, msg); err != nil {
					h.log.Debug("dropping websocket client", zap.Error(err))
					dead = append(dead, client)
				}
			}
			h.mutex.RUnlock()
			for _, client := range dead {
				h.RemoveClient(client)
			}
		}
	}
}

func (h *Hub) write(client *websocket.Conn, msg []byte) error {
	if err := client.SetWriteDeadline(time.Now().Add(h.writeWait)); err != nil {
		return err
	}
	return client.WriteMessage(websocket.TextMessage, msg)
}

func (h *Hub) AddClient(conn *websocket.Conn) {
	h.mutex.Lock()
	h.clients[conn] = true
	h.mutex.Unlock()
}

func (h *Hub) RemoveClient(conn *websocket.Conn) {
	h.mutex.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
	h.mutex.Unlock()
}

// BroadcastMessage queues message for every client. A full queue drops it.
func (h *Hub) BroadcastMessage(message []byte) bool {
	select {
	case h.broadcast <- message:
		return true
	default:
		return false
	}
}

func (h *Hub) GetClientsCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Publish implements services.EventPublisher.
func (h *Hub) Publish(_ context.Context, evt models.LedgerEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	if !h.BroadcastMessage(data) {
		h.log.Warn("⚠️ broadcast queue full, event dropped", zap.String("type", string(evt.Type)))
	}
	return nil
}
