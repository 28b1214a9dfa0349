package services

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait bounds a single socket write.
	writeWait = 10 * time.Second
	// sendBuffer is how many events a slow subscriber may lag behind before
	// new ones are dropped for it.
	sendBuffer = 32
)

// WSClient is one subscriber to menu update events. Data frames go through
// send and are written by the hub's writer goroutine only.
type WSClient struct {
	Conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func NewWSClient(conn *websocket.Conn) *WSClient {
	return &WSClient{
		Conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

// Ping sends a websocket ping. WriteControl is safe alongside the writer.
func (c *WSClient) Ping() error {
	return c.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (c *WSClient) stop() {
	c.once.Do(func() { close(c.done) })
}

// UpdateEvent is pushed to subscribers when a restaurant gains menu items.
type UpdateEvent struct {
	Kind       string `json:"kind"`
	Restaurant string `json:"restaurant"`
	Added      int    `json:"added"`
}

type RealtimeHub struct {
	mu      sync.RWMutex
	clients map[*WSClient]struct{}
}

func NewRealtimeHub() *RealtimeHub {
	return &RealtimeHub{clients: make(map[*WSClient]struct{})}
}

// Register adds c and starts its writer.
func (h *RealtimeHub) Register(c *WSClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	go h.writeLoop(c)
}

func (h *RealtimeHub) writeLoop(c *WSClient) {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.Unregister(c)
				return
			}
		}
	}
}

func (h *RealtimeHub) Unregister(c *WSClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		c.stop()
		_ = c.Conn.Close()
	}
}

func (h *RealtimeHub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues payload for every subscriber without waiting on any socket.
// A subscriber whose queue is full misses the event.
func (h *RealtimeHub) Broadcast(payload any) {
	msg, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[WS] marshal event: %v", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			log.Printf("[WS] subscriber lagging, event dropped")
		}
	}
}

// RestaurantUpdated implements UpdateListener.
func (h *RealtimeHub) RestaurantUpdated(name string, added int) {
	h.Broadcast(UpdateEvent{Kind: "restaurant.updated", Restaurant: name, Added: added})
}
