// Package realtime maintains the persistent socket connections of riders,
// customer watchers, and anonymous trip watchers, and fans messages out to
// them. Delivery is best effort: a missed frame is never a lost booking.
package realtime

import (
	"log"
	"sync"
)

// Hub is the connection registry. One instance is created at process start
// and torn down on shutdown; it is injected wherever fan-out is needed so
// the dispatch engine can be tested against a fake.
type Hub struct {
	mu sync.RWMutex

	// riders holds at most one connection per rider id; reconnects replace.
	riders map[string]*Client
	// watchers are customer connections keyed by the rider id they watch.
	watchers map[string]map[*Client]bool
	// tripWatchers are anonymous connections keyed by booking share token.
	tripWatchers map[string]map[*Client]bool

	closed bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		riders:       make(map[string]*Client),
		watchers:     make(map[string]map[*Client]bool),
		tripWatchers: make(map[string]map[*Client]bool),
	}
}

// registerRider attaches a rider connection, replacing any previous one.
func (h *Hub) registerRider(riderID string, c *Client) {
	h.mu.Lock()
	prev := h.riders[riderID]
	h.riders[riderID] = c
	h.mu.Unlock()

	if prev != nil {
		prev.close()
	}
}

// registerWatcher attaches a customer watcher for a rider.
func (h *Hub) registerWatcher(riderID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.watchers[riderID] == nil {
		h.watchers[riderID] = make(map[*Client]bool)
	}
	h.watchers[riderID][c] = true
}

// registerTripWatcher attaches an anonymous watcher for a share token.
func (h *Hub) registerTripWatcher(token string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.tripWatchers[token] == nil {
		h.tripWatchers[token] = make(map[*Client]bool)
	}
	h.tripWatchers[token][c] = true
}

// unregister detaches a client from whichever registry it lives in.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch c.class {
	case classRider:
		// Only remove if this connection is still the current one; a
		// reconnect may already have replaced it.
		if h.riders[c.riderID] == c {
			delete(h.riders, c.riderID)
		}
	case classWatcher:
		if set := h.watchers[c.riderID]; set != nil {
			delete(set, c)
			if len(set) == 0 {
				delete(h.watchers, c.riderID)
			}
		}
	case classTripWatcher:
		if set := h.tripWatchers[c.token]; set != nil {
			delete(set, c)
			if len(set) == 0 {
				delete(h.tripWatchers, c.token)
			}
		}
	}
}

// RiderConnected reports whether a rider has an open connection.
func (h *Hub) RiderConnected(riderID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.riders[riderID]
	return ok
}

// SendToRider delivers a message to one rider's connection.
func (h *Hub) SendToRider(riderID string, msg Message) error {
	h.mu.RLock()
	c, ok := h.riders[riderID]
	h.mu.RUnlock()
	if !ok {
		return ErrNotConnected
	}
	return c.Send(msg)
}

// BroadcastToRiders delivers a message to every connected rider except one.
// Cheap untargeted fan-out; correctness never depends on delivery.
func (h *Hub) BroadcastToRiders(msg Message, exceptRiderID string) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.riders))
	for id, c := range h.riders {
		if id == exceptRiderID {
			continue
		}
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.Send(msg); err != nil {
			log.Printf("broadcast to rider %s failed: %v", c.riderID, err)
		}
	}
}

// NotifyWatchers delivers a message to every customer watching a rider.
func (h *Hub) NotifyWatchers(riderID string, msg Message) {
	h.mu.RLock()
	clients := make([]*Client, 0)
	for c := range h.watchers[riderID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		_ = c.Send(msg)
	}
}

// NotifyTrip delivers a message to every anonymous watcher of a share token.
func (h *Hub) NotifyTrip(token string, msg Message) {
	h.mu.RLock()
	clients := make([]*Client, 0)
	for c := range h.tripWatchers[token] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		_ = c.Send(msg)
	}
}

// Shutdown closes every connection. Called once on process exit.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true

	var clients []*Client
	for _, c := range h.riders {
		clients = append(clients, c)
	}
	for _, set := range h.watchers {
		for c := range set {
			clients = append(clients, c)
		}
	}
	for _, set := range h.tripWatchers {
		for c := range set {
			clients = append(clients, c)
		}
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}
