package plot

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/raykavin/signalsense/pkg/logger"
	"github.com/raykavin/signalsense/pkg/metric"
)

const writeWait = 10 * time.Second

// Broadcaster delivers a message to every connected page.
type Broadcaster interface {
	Broadcast(msg Message)
}

type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *client) send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(msg)
}

// Hub fans messages out to websocket clients. A client that joins late is
// first sent whatever the greeting returns.
type Hub struct {
	sync.RWMutex
	clients       map[*client]struct{}
	upgrader      websocket.Upgrader
	broadcastChan chan Message
	greeting      func() []Message
	log           logger.Logger
	metrics       *metric.Metrics

	closeMu sync.RWMutex
	closed  bool
}

var _ Broadcaster = (*Hub)(nil)

// NewHub creates a hub and starts its broadcast loop.
func NewHub(log logger.Logger, metrics *metric.Metrics) *Hub {
	hub := &Hub{
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		broadcastChan: make(chan Message, 256),
		greeting:      func() []Message { return nil },
		log:           log,
		metrics:       metrics,
	}

	go hub.handleBroadcasts()

	return hub
}

// Greet sets the messages sent to each new client before any broadcast.
func (h *Hub) Greet(greeting func() []Message) {
	h.Lock()
	defer h.Unlock()
	h.greeting = greeting
}

// Broadcast queues msg for every client. It is a no-op after Close.
func (h *Hub) Broadcast(msg Message) {
	h.closeMu.RLock()
	defer h.closeMu.RUnlock()

	if h.closed {
		return
	}
	h.broadcastChan <- msg
}

// Clients reports the number of connected clients.
func (h *Hub) Clients() int {
	h.RLock()
	defer h.RUnlock()
	return len(h.clients)
}

// Close stops the broadcast loop and disconnects every client.
func (h *Hub) Close() {
	h.closeMu.Lock()
	defer h.closeMu.Unlock()

	if !h.closed {
		h.closed = true
		close(h.broadcastChan)
	}
}

func (h *Hub) handleBroadcasts() {
	for msg := range h.broadcastChan {
		h.RLock()
		for c := range h.clients {
			if err := c.send(msg); err != nil {
				h.log.WithError(err).Warn("websocket write failed")
				// the reader goroutine notices and unregisters the client
				c.conn.Close()
			}
		}
		h.RUnlock()
	}

	h.Lock()
	for c := range h.clients {
		c.conn.Close()
	}
	h.Unlock()
}

// HandleWebSocket upgrades the request and registers the client.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Error("failed to upgrade connection to websocket")
		return
	}

	c := &client{conn: conn}

	// holding the write lock keeps broadcasts behind the greeting
	h.Lock()
	for _, msg := range h.greeting() {
		if err := c.send(msg); err != nil {
			h.Unlock()
			h.log.WithError(err).Warn("failed to greet websocket client")
			conn.Close()
			return
		}
	}
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.Unlock()

	h.metrics.ClientsConnected(count)
	h.log.Infof("websocket client connected, total: %d", count)

	go h.handleClient(c)
}

func (h *Hub) handleClient(c *client) {
	defer func() {
		h.Lock()
		delete(h.clients, c)
		count := len(h.clients)
		h.Unlock()

		c.conn.Close()
		h.metrics.ClientsConnected(count)
		h.log.Infof("websocket client disconnected, remaining: %d", count)
	}()

	c.conn.SetPingHandler(func(string) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.conn.WriteControl(websocket.PongMessage, []byte{}, time.Now().Add(writeWait))
	})

	// pages never send data; reading only detects the disconnect
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.WithError(err).Warn("websocket read error")
			}
			return
		}
	}
}
