package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"handyconnect-server/models"
)

// Frame is the JSON shape of every outbound websocket message.
type Frame struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Hub tracks authenticated connections by user id. A user may hold several
// connections at once; frames addressed to a user reach all of them.
type Hub struct {
	clients map[uint]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	deliver    chan Envelope

	broker  Broker
	ctx     context.Context
	cancel  context.CancelFunc
	started atomic.Bool
	// subscribed is true while the broker subscription is live.
	subscribed atomic.Bool
	done    chan struct{}

	mu sync.RWMutex
}

// NewHub creates a hub. With a nil broker frames are delivered only to this
// instance's connections.
func NewHub(broker Broker) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[uint]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		deliver:    make(chan Envelope, 256),
		broker:     broker,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop and, with a broker, the subscription. It
// returns when Stop is called.
func (h *Hub) Run() {
	if !h.started.CompareAndSwap(false, true) {
		return
	}
	defer close(h.done)
	ctx := h.ctx

	if h.broker != nil {
		go func() {
			for ctx.Err() == nil {
				err := h.broker.Subscribe(ctx, func() { h.subscribed.Store(true) }, h.enqueue)
				h.subscribed.Store(false)
				if err != nil {
					log.Printf("❌ Event subscription failed: %v", err)
					select {
					case <-ctx.Done():
					case <-time.After(2 * time.Second):
					}
				}
			}
		}()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.userID] == nil {
				h.clients[client.userID] = make(map[*Client]bool)
			}
			h.clients[client.userID][client] = true
			h.mu.Unlock()
			log.Printf("🔌 Client registered: user=%d", client.userID)

		case client := <-h.unregister:
			h.remove(client)
			log.Printf("🔌 Client unregistered: user=%d", client.userID)

		case env := <-h.deliver:
			h.deliverLocal(env)

		case <-ctx.Done():
			h.closeAll()
			return
		}
	}
}

// Stop ends Run and closes every connection.
func (h *Hub) Stop() {
	h.cancel()
	if h.started.Load() {
		<-h.done
	}
}

func (h *Hub) enqueue(env Envelope) {
	select {
	case h.deliver <- env:
	case <-h.ctx.Done():
	}
}

// PublishToUsers sends a frame to every connection of the given users,
// across instances when a broker is configured. Until this instance's own
// subscription is live, local connections are served directly as well.
func (h *Hub) PublishToUsers(userIDs []uint, eventType string, data interface{}) {
	if len(userIDs) == 0 {
		return
	}
	env := Envelope{
		UserIDs: uniqueIDs(userIDs),
		Frame:   Frame{Type: eventType, Data: data, Timestamp: time.Now().UTC()},
	}

	if h.broker != nil {
		subscribed := h.subscribed.Load()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		err := h.broker.Publish(ctx, env)
		if err == nil && subscribed {
			return
		}
		if err != nil {
			log.Printf("⚠️ Broker publish failed, delivering locally: %v", err)
		}
	}
	h.enqueue(env)
}

func (h *Hub) deliverLocal(env Envelope) {
	data, err := json.Marshal(env.Frame)
	if err != nil {
		log.Printf("❌ Error marshaling frame: %v", err)
		return
	}

	var dropped []*Client
	h.mu.RLock()
	for _, userID := range env.UserIDs {
		for client := range h.clients[userID] {
			if !client.trySend(data) {
				dropped = append(dropped, client)
			}
		}
	}
	h.mu.RUnlock()

	for _, client := range dropped {
		log.Printf("⚠️ Send buffer full for user %d, dropping connection", client.userID)
		h.remove(client)
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	if conns, ok := h.clients[client.userID]; ok {
		delete(conns, client)
		if len(conns) == 0 {
			delete(h.clients, client.userID)
		}
	}
	h.mu.Unlock()
	client.closeSend()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, conns := range h.clients {
		for client := range conns {
			client.closeSend()
		}
		delete(h.clients, userID)
	}
}

// ConnectionCount returns the number of live authenticated connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, conns := range h.clients {
		n += len(conns)
	}
	return n
}

// IsUserConnected checks if a user has at least one live connection
func (h *Hub) IsUserConnected(userID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

func (h *Hub) attach(client *Client, user *models.User) bool {
	client.setUser(user)
	select {
	case h.register <- client:
		return true
	case <-h.ctx.Done():
		return false
	}
}

func (h *Hub) detach(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
