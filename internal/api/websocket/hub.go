// Package websocket pushes analysis run notifications to connected clients.
package websocket

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/davidleathers/workflow-insights-backend/internal/service/reporting"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 512
	sendBuffer     = 16
)

// EventConnectionEstablished is the first message every client receives
const EventConnectionEstablished = "connection.established"

// Message is the envelope written to clients
type Message struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// RunHub fans run events out to the clients of the owning account
type RunHub struct {
	logger      *zap.Logger
	upgrader    websocket.Upgrader
	clients     map[uuid.UUID]*Client
	clientsLock sync.RWMutex
	broadcast   chan reporting.Event
	register    chan *Client
	unregister  chan *Client
	done        chan struct{}
	stopOnce    sync.Once
	pingPeriod  time.Duration
}

// Client is one websocket subscriber
type Client struct {
	ID          uuid.UUID
	AccountID   uuid.UUID
	ConnectedAt time.Time
	conn        *websocket.Conn
	send        chan *Message
	hub         *RunHub
}

var _ reporting.Notifier = (*RunHub)(nil)

// NewRunHub creates a hub that accepts upgrades from the allowed browser
// origins. Call Run before serving connections.
func NewRunHub(logger *zap.Logger, allowedOrigins []string) *RunHub {
	return &RunHub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		clients:    make(map[uuid.UUID]*Client),
		broadcast:  make(chan reporting.Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		pingPeriod: pingPeriod,
	}
}

// originChecker matches the Origin header against origins. Requests without
// one come from non-browser clients and are let through.
func originChecker(origins []string) func(*http.Request) bool {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[strings.TrimRight(o, "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := allowed[strings.TrimRight(origin, "/")]
		return ok
	}
}

// Run processes hub traffic until ctx ends or Stop is called. Keepalive
// pings are sent by each client's write pump.
func (h *RunHub) Run(ctx context.Context) {
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			h.Stop()
			return
		case <-h.done:
			return
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.unregisterClient(client)
		case event := <-h.broadcast:
			h.broadcastEvent(event)
		}
	}
}

// Stop ends Run and disconnects every client
func (h *RunHub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Publish queues an event without blocking; it is dropped when the hub is
// stopped or saturated.
func (h *RunHub) Publish(event reporting.Event) {
	select {
	case <-h.done:
		return
	default:
	}
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("run event dropped, broadcast queue full",
			zap.String("run_id", event.RunID.String()),
		)
	}
}

// Count returns the number of connected clients
func (h *RunHub) Count() int {
	h.clientsLock.RLock()
	defer h.clientsLock.RUnlock()
	return len(h.clients)
}

// Serve upgrades the request and subscribes it to accountID's events
func (h *RunHub) Serve(w http.ResponseWriter, r *http.Request, accountID uuid.UUID) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("failed to upgrade websocket connection",
			zap.Error(err),
			zap.String("remote_addr", r.RemoteAddr),
		)
		return
	}

	client := &Client{
		ID:          uuid.New(),
		AccountID:   accountID,
		ConnectedAt: time.Now(),
		conn:        conn,
		send:        make(chan *Message, sendBuffer),
		hub:         h,
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (h *RunHub) registerClient(client *Client) {
	h.clientsLock.Lock()
	defer h.clientsLock.Unlock()

	h.clients[client.ID] = client
	h.logger.Info("websocket client registered",
		zap.String("client_id", client.ID.String()),
		zap.String("account_id", client.AccountID.String()),
	)

	welcome := &Message{
		ID:        uuid.New().String(),
		Type:      EventConnectionEstablished,
		Timestamp: time.Now().UTC(),
		Data:      map[string]string{"client_id": client.ID.String()},
	}
	select {
	case client.send <- welcome:
	default:
	}
}

func (h *RunHub) unregisterClient(client *Client) {
	h.clientsLock.Lock()
	defer h.clientsLock.Unlock()

	if _, exists := h.clients[client.ID]; exists {
		delete(h.clients, client.ID)
		close(client.send)
		h.logger.Info("websocket client unregistered", zap.String("client_id", client.ID.String()))
	}
}

func (h *RunHub) broadcastEvent(event reporting.Event) {
	h.clientsLock.RLock()
	defer h.clientsLock.RUnlock()

	msg := &Message{
		ID:        uuid.New().String(),
		Type:      event.Type,
		Timestamp: event.Timestamp,
		Data:      event,
	}
	for _, client := range h.clients {
		if client.AccountID != event.AccountID {
			continue
		}
		select {
		case client.send <- msg:
		default:
			h.logger.Warn("client send channel full, closing connection",
				zap.String("client_id", client.ID.String()),
			)
			go h.drop(client)
		}
	}
}

func (h *RunHub) drop(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *RunHub) shutdown() {
	h.clientsLock.Lock()
	defer h.clientsLock.Unlock()

	for _, client := range h.clients {
		close(client.send)
	}
	h.clients = make(map[uuid.UUID]*Client)
}

func (c *Client) readPump() {
	defer func() {
		c.hub.drop(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket read error",
					zap.String("client_id", c.ID.String()),
					zap.Error(err),
				)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
