package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vinayprograms/taskkit/logging"
	"github.com/vinayprograms/taskkit/taskstore"
)

const (
	wsWriteTimeout   = 10 * time.Second
	wsPingInterval   = 30 * time.Second
	wsMaxMessageSize = 64 * 1024
	wsSendBuffer     = 32
)

// TaskLister supplies the snapshot a freshly subscribed client gets.
// *service.Service satisfies it.
type TaskLister interface {
	GetAllTasks(ctx context.Context) ([]taskstore.Task, error)
}

// subscribeMessage is what clients send over the socket.
type subscribeMessage struct {
	Subscribe *struct {
		ClientID string `json:"client_id"`
	} `json:"subscribe,omitempty"`
	Unsubscribe *struct{} `json:"unsubscribe,omitempty"`
}

// taskListMessage is the snapshot sent when a client subscribes.
type taskListMessage struct {
	Tasks []taskstore.Task `json:"tasks"`
}

// taskUpdateMessage carries one created or status-changed task.
type taskUpdateMessage struct {
	TaskUpdate taskstore.Task `json:"task_update"`
}

// Hub fans task updates out to subscribed WebSocket clients. It
// implements service.Notifier, so wiring it into the dispatcher is all
// the integration there is.
//
// A client holds the socket open but hears nothing until it subscribes;
// on subscribe it receives the current task list, then every update.
// Clients that fall behind are dropped rather than allowed to stall the
// dispatcher.
type Hub struct {
	lister   TaskLister
	log      *logging.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

// NewHub creates a hub taking subscribe-time snapshots from lister.
// The lister may be nil at construction and set later with SetLister:
// the hub is the dispatcher's notifier, so the two reference each other.
func NewHub(lister TaskLister, log *logging.Logger) *Hub {
	if log == nil {
		log = logging.New()
	}
	return &Hub{
		lister: lister,
		log:    log.WithComponent("ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*wsClient]struct{}),
	}
}

// SetLister sets the snapshot source. Must be called before the hub
// serves its first connection.
func (h *Hub) SetLister(lister TaskLister) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lister = lister
}

func (h *Hub) snapshotSource() TaskLister {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lister
}

// TaskUpdated implements service.Notifier. It never blocks: slow
// clients are disconnected instead.
func (h *Hub) TaskUpdated(task taskstore.Task) {
	data, err := json.Marshal(taskUpdateMessage{TaskUpdate: task})
	if err != nil {
		h.log.Error("update_marshal_failed", map[string]interface{}{"error": err.Error()})
		return
	}

	h.mu.RLock()
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if !c.subscribed() {
			continue
		}
		if !c.offer(data) {
			h.log.Warn("client_dropped", map[string]interface{}{"client_id": c.id()})
			c.close()
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() error {
	h.mu.Lock()
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*wsClient]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
	return nil
}

// handleConnect upgrades the request and runs the client until it
// disconnects.
func (h *Hub) handleConnect(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade_failed", map[string]interface{}{"error": err.Error()})
		return
	}

	c := &wsClient{
		hub:  h,
		conn: conn,
		send: make(chan []byte, wsSendBuffer),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go c.writeLoop()
	c.readLoop(r.Context())

	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu       sync.Mutex
	clientID string
	active   bool

	closeOnce sync.Once
	done      chan struct{}
}

func (c *wsClient) subscribed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *wsClient) id() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clientID
}

// offer queues an outbound frame without blocking. False means the
// client's buffer is full.
func (c *wsClient) offer(data []byte) bool {
	select {
	case <-c.done:
		return true
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *wsClient) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.conn.Close()
	})
}

// readLoop consumes subscribe/unsubscribe messages until the peer
// disconnects.
func (c *wsClient) readLoop(ctx context.Context) {
	c.conn.SetReadLimit(wsMaxMessageSize)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg subscribeMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.hub.log.Debug("bad_client_message", map[string]interface{}{"error": err.Error()})
			continue
		}

		switch {
		case msg.Subscribe != nil:
			c.mu.Lock()
			c.clientID = msg.Subscribe.ClientID
			c.active = true
			c.mu.Unlock()
			c.hub.log.Info("client_subscribed", map[string]interface{}{"client_id": msg.Subscribe.ClientID})
			c.sendSnapshot(ctx)

		case msg.Unsubscribe != nil:
			c.mu.Lock()
			c.active = false
			c.mu.Unlock()
			c.hub.log.Info("client_unsubscribed", map[string]interface{}{"client_id": c.id()})
		}
	}
}

// sendSnapshot delivers the current task list to a just-subscribed
// client.
func (c *wsClient) sendSnapshot(ctx context.Context) {
	lister := c.hub.snapshotSource()
	if lister == nil {
		return
	}
	tasks, err := lister.GetAllTasks(ctx)
	if err != nil {
		c.hub.log.Warn("snapshot_failed", map[string]interface{}{"error": err.Error()})
		return
	}
	if tasks == nil {
		tasks = []taskstore.Task{}
	}
	data, err := json.Marshal(taskListMessage{Tasks: tasks})
	if err != nil {
		return
	}
	c.offer(data)
}

// writeLoop owns the connection's write side: queued frames plus
// keepalive pings.
func (c *wsClient) writeLoop() {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second))
		}
	}
}
