package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tummler-rov/autopilot-manager/detector"
	"github.com/tummler-rov/autopilot-manager/logger"
	"github.com/tummler-rov/autopilot-manager/metrics"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Event is the envelope for every websocket message the hub sends.
type Event struct {
	Type    string      `json:"type"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Command is what clients may send: "detect" to request a rescan, "status"
// to get a fresh snapshot.
type Command struct {
	Command string `json:"command"`
}

type wsClient struct {
	id   string
	conn *websocket.Conn

	// writeMu serializes writes; the hub and the per-connection reader
	// both send to this client.
	writeMu sync.Mutex
}

// writeWait bounds one outgoing message. A peer that stops draining its
// socket must not stall Broadcast, and with it the detection loop's state
// callback.
const writeWait = 5 * time.Second

func (c *wsClient) send(ev Event) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(ev)
}

// Hub fans detection state changes out to all connected clients.
type Hub struct {
	svc     *detector.Service
	metrics *metrics.Metrics
	log     *zap.SugaredLogger

	mu      sync.RWMutex
	clients map[string]*wsClient
	closed  bool
}

func newHub(svc *detector.Service, m *metrics.Metrics) *Hub {
	return &Hub{
		svc:     svc,
		metrics: m,
		log:     logger.Named("ws"),
		clients: make(map[string]*wsClient),
	}
}

// ServeWS upgrades the connection, pushes a status snapshot and then serves
// commands until the peer goes away. State changes arrive via Broadcast.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnf("upgrade: %v", err)
		return
	}

	client := &wsClient{id: uuid.NewString(), conn: conn}
	if !h.register(client) {
		conn.Close()
		return
	}
	defer h.unregister(client)

	client.send(Event{Type: "status", Data: h.svc.Status()})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var cmd Command
		if err := json.Unmarshal(msg, &cmd); err != nil {
			client.send(Event{Type: "error", Message: "invalid JSON"})
			continue
		}

		switch cmd.Command {
		case "detect":
			h.svc.Trigger()
			client.send(Event{Type: "ack", Message: "rescan requested"})
		case "status":
			client.send(Event{Type: "status", Data: h.svc.Status()})
		default:
			client.send(Event{Type: "error", Message: "unknown command"})
		}
	}
}

// Broadcast pushes a state change to every connected client.
func (h *Hub) Broadcast(info detector.StatusInfo) {
	h.mu.RLock()
	clients := make([]*wsClient, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	ev := Event{Type: "status", Data: info}
	for _, c := range clients {
		if err := c.send(ev); err != nil {
			h.log.Debugf("client %s: dropping: %v", c.id, err)
			h.unregister(c)
		}
	}
}

// ClientCount returns the number of attached clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, c := range h.clients {
		c.conn.Close()
		delete(h.clients, id)
		h.metrics.WSDisconnected()
	}
}

func (h *Hub) register(c *wsClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c.id] = c
	h.metrics.WSConnected()
	h.log.Debugf("client %s connected (%d total)", c.id, len(h.clients))
	return true
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	delete(h.clients, c.id)
	c.conn.Close()
	h.metrics.WSDisconnected()
	h.log.Debugf("client %s disconnected (%d total)", c.id, len(h.clients))
}
