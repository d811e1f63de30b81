package monitor

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
)

// StatusMessage is the event envelope sent to monitor clients. The feed
// only ever emits one kind of event today, but the Type/Data shape leaves
// room for a future event without breaking existing clients.
type StatusMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// wsClient wraps a websocket connection with a per-connection write mutex,
// since gorilla/websocket forbids concurrent writes on the same *Conn.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// send marshals and writes msg to this client alone.
func (c *wsClient) send(msg StatusMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(msg)
}

// sendBytes writes an already-encoded message, for callers fanning the same
// payload out to many clients without re-marshaling it per recipient.
func (c *wsClient) sendBytes(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

// hub is a broadcast hub for connected monitor clients: a mutex-guarded
// client set, each entry its own write-serialized connection.
type hub struct {
	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

func newHub() *hub {
	return &hub{clients: make(map[*wsClient]struct{})}
}

func (h *hub) add(conn *websocket.Conn) *wsClient {
	c := &wsClient{conn: conn}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *hub) remove(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	_ = c.conn.Close()
}

// broadcast marshals msg exactly once and fans the resulting bytes out to
// every connected client, rather than re-encoding per recipient. Failures
// are ignored; each client's own read-loop will notice the disconnect and
// remove it.
func (h *hub) broadcast(msg StatusMessage) {
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		_ = c.sendBytes(b)
	}
}

func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
