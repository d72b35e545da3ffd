// Package realtime pushes events to connected clients over WebSockets.
//
// The Hub is the registry of live connections, keyed by user id. A user may
// hold several connections at once (two tabs, phone and laptop); every one of
// them receives the user's events. The Hub is created at startup, handed to
// whoever needs to publish, and closed at shutdown.
package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/fineahban/marketplace/internal/model"
)

const (
	sendQueueSize = 64
	writeTimeout  = 10 * time.Second
	pingInterval  = 25 * time.Second
	pingTimeout   = 5 * time.Second
)

// EventMessageNew is pushed to both participants when a message is stored.
const EventMessageNew = "message:new"

// Event is the JSON frame written to clients.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Client is one live connection.
type Client struct {
	UserID int64

	conn *websocket.Conn
	send chan Event

	ctx    context.Context
	cancel context.CancelFunc
}

type Hub struct {
	mu      sync.RWMutex
	clients map[int64]map[*Client]struct{}
	closed  bool
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[int64]map[*Client]struct{}),
		logger:  logger,
	}
}

// AddClient registers conn for userID and starts its writer and keepalive
// goroutines. Returns nil if the hub is already closed; the caller should
// close conn itself.
func (h *Hub) AddClient(userID int64, conn *websocket.Conn) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Client{
		UserID: userID,
		conn:   conn,
		send:   make(chan Event, sendQueueSize),
		ctx:    ctx,
		cancel: cancel,
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		cancel()
		return nil
	}
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*Client]struct{})
	}
	h.clients[userID][c] = struct{}{}
	h.mu.Unlock()

	go c.writeLoop(h.logger)
	go c.keepAliveLoop()

	h.logger.Debug("realtime client connected", slog.Int64("userID", userID))
	return c
}

// RemoveClient unregisters c and closes its connection. Safe to call twice.
func (h *Hub) RemoveClient(c *Client) {
	c.cancel()

	h.mu.Lock()
	if set, ok := h.clients[c.UserID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.UserID)
		}
	}
	h.mu.Unlock()

	_ = c.conn.Close(websocket.StatusNormalClosure, "bye")
}

// Publish queues ev for every connection of every listed user. A client whose
// queue is full misses the event rather than stalling the publisher.
func (h *Hub) Publish(userIDs []int64, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, uid := range userIDs {
		for c := range h.clients[uid] {
			select {
			case c.send <- ev:
			default:
				h.logger.Warn("realtime send queue full, dropping event",
					slog.Int64("userID", uid),
					slog.String("type", ev.Type),
				)
			}
		}
	}
}

// NotifyMessage pushes msg to its sender and recipient.
func (h *Hub) NotifyMessage(msg *model.Message) {
	ids := []int64{msg.SenderID}
	if msg.RecipientID != msg.SenderID {
		ids = append(ids, msg.RecipientID)
	}
	h.Publish(ids, Event{Type: EventMessageNew, Data: msg})
}

// ConnectedCount returns the number of live connections held for userID.
func (h *Hub) ConnectedCount(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var all []*Client
	for _, set := range h.clients {
		for c := range set {
			all = append(all, c)
		}
	}
	h.clients = make(map[int64]map[*Client]struct{})
	h.mu.Unlock()

	for _, c := range all {
		c.cancel()
		_ = c.conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
}

// writeLoop is the only goroutine writing data frames to the connection.
func (c *Client) writeLoop(logger *slog.Logger) {
	for {
		select {
		case <-c.ctx.Done():
			return
		case ev := <-c.send:
			writeCtx, cancel := context.WithTimeout(c.ctx, writeTimeout)
			err := wsjson.Write(writeCtx, c.conn, ev)
			cancel()
			if err != nil {
				logger.Debug("realtime write failed",
					slog.Int64("userID", c.UserID),
					slog.String("error", err.Error()),
				)
				return
			}
		}
	}
}

func (c *Client) keepAliveLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(c.ctx, pingTimeout)
			_ = c.conn.Ping(pingCtx)
			cancel()
		}
	}
}
