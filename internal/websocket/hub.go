package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"tasktracker/internal/metrics"
	"tasktracker/internal/models"
	"tasktracker/pkg/logger"
)

// Conn is the write side of a websocket connection.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// ErrClientClosed is returned by writes to a client whose connection has
// been released.
var ErrClientClosed = errors.New("websocket client closed")

// Client is one websocket connection. Writes are serialised per client.
// Once closed, the client never touches conn again: the underlying
// connection object is pooled and may already serve another peer.
type Client struct {
	conn   Conn
	mu     sync.Mutex
	closed bool
	userID int64
}

func NewClient(conn Conn) *Client {
	return &Client{conn: conn}
}

func (c *Client) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// close marks the client closed and closes conn the first time only.
func (c *Client) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

// WriteJSON encodes v and sends it as a text frame.
func (c *Client) WriteJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.write(data)
}

// Relay carries events between processes. Publish hands an event to every
// subscribed hub, including the publishing one.
type Relay interface {
	Publish(ctx context.Context, event models.TaskEvent) error
	Subscribe(ctx context.Context, deliver func(models.TaskEvent)) error
}

// Hub tracks at most one live client per user and pushes task events to
// the users entitled to see them.
type Hub struct {
	mu         sync.RWMutex
	clients    map[int64]*Client
	relay      Relay
	metrics    *metrics.Registry
	retryDelay time.Duration
}

type Option func(*Hub)

// WithRelay routes broadcasts through r so every process sees them.
func WithRelay(r Relay) Option {
	return func(h *Hub) { h.relay = r }
}

func WithMetrics(r *metrics.Registry) Option {
	return func(h *Hub) { h.metrics = r }
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{clients: make(map[int64]*Client), retryDelay: 2 * time.Second}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register binds c to userID, replacing any previous client of that user.
// A client that was registered under another user is moved.
func (h *Hub) Register(userID int64, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.userID != 0 && h.clients[c.userID] == c {
		delete(h.clients, c.userID)
	}
	c.userID = userID
	h.clients[userID] = c
	h.updateGauge()
}

// Unregister removes c unless its user has since registered another client.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.userID != 0 && h.clients[c.userID] == c {
		delete(h.clients, c.userID)
		h.updateGauge()
	}
}

func (h *Hub) updateGauge() {
	if h.metrics != nil {
		h.metrics.WSConnections.Set(float64(len(h.clients)))
	}
}

// Count returns the number of registered users.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast publishes event through the relay when one is configured and
// delivers locally otherwise. Delivery is best effort.
func (h *Hub) Broadcast(ctx context.Context, event models.TaskEvent) {
	if h.metrics != nil {
		h.metrics.EventsTotal.WithLabelValues(string(event.Type)).Inc()
	}
	if h.relay != nil {
		err := h.relay.Publish(ctx, event)
		if err == nil {
			return
		}
		logger.ErrorLogger.Error("Error publishing task event, delivering locally",
			zap.String("event", string(event.Type)),
			zap.Int64("task_id", event.TaskID),
			zap.Error(err),
		)
	}
	h.Deliver(event)
}

// Deliver pushes event to every local client whose user is the task's
// creator or assignee. A client whose write fails is evicted and closed.
// It returns the number of successful pushes.
func (h *Hub) Deliver(event models.TaskEvent) int {
	if event.Task == nil {
		return 0
	}

	type target struct {
		userID int64
		client *Client
	}
	h.mu.RLock()
	targets := make([]target, 0, 2)
	for userID, c := range h.clients {
		if event.Task.VisibleTo(userID) {
			targets = append(targets, target{userID, c})
		}
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return 0
	}

	data, err := json.Marshal(models.TaskEventMessage{Type: event.Type, Data: event})
	if err != nil {
		logger.ErrorLogger.Error("Error encoding task event", zap.Error(err))
		return 0
	}

	delivered := 0
	for _, t := range targets {
		if err := t.client.write(data); err != nil {
			logger.SystemLogger.Info("Dropping websocket client after failed write",
				zap.Int64("user_id", t.userID),
				zap.Error(err),
			)
			h.Unregister(t.client)
			_ = t.client.close()
			h.count("dropped")
			continue
		}
		delivered++
		h.count("delivered")
	}
	return delivered
}

func (h *Hub) count(outcome string) {
	if h.metrics != nil {
		h.metrics.Deliveries.WithLabelValues(outcome).Inc()
	}
}

// Run feeds relayed events into local delivery until ctx is done. A lost
// subscription is re-established after retryDelay. Without a relay it just
// waits.
func (h *Hub) Run(ctx context.Context) error {
	if h.relay == nil {
		<-ctx.Done()
		return nil
	}
	for {
		err := h.relay.Subscribe(ctx, func(e models.TaskEvent) { h.Deliver(e) })
		if ctx.Err() != nil {
			return nil
		}
		logger.ErrorLogger.Error("Task event subscription lost, retrying",
			zap.Duration("delay", h.retryDelay), zap.Error(err))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(h.retryDelay):
		}
	}
}
