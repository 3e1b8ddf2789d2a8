package hub

import (
	"log"
	"sync"
)

// Subscriber is an opaque connection handle that can receive payloads.
// Send must be safe for use by a single hub; implementations wrapping
// connections that forbid concurrent writes serialize internally.
type Subscriber interface {
	Send(payload []byte) error
}

// Hub manages subscriber connections and delivers messages with per-subscriber
// failure isolation. It may be driven concurrently by multiple detection
// loops and connection handlers.
type Hub struct {
	name string

	mu   sync.RWMutex
	subs map[Subscriber]struct{}

	onCountChange func(n int)
	onSendFailure func()
}

// New creates an empty hub. The name appears in log lines only.
func New(name string) *Hub {
	return &Hub{
		name: name,
		subs: make(map[Subscriber]struct{}),
	}
}

// OnCountChange registers a callback invoked with the subscriber count after
// every connect, disconnect, and broadcast-eviction. Used for gauge metrics.
// Must be set before the hub is shared.
func (h *Hub) OnCountChange(fn func(n int)) {
	h.onCountChange = fn
}

// OnSendFailure registers a callback invoked once per failed delivery.
// Must be set before the hub is shared.
func (h *Hub) OnSendFailure(fn func()) {
	h.onSendFailure = fn
}

// Connect registers a subscriber. Registering the same handle twice is a
// no-op.
func (h *Hub) Connect(sub Subscriber) {
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	n := len(h.subs)
	h.mu.Unlock()

	h.notifyCount(n)
	log.Printf("[%s] subscriber connected (%d active)", h.name, n)
}

// Disconnect removes a subscriber. Safe to call for handles that were never
// registered or were already removed.
func (h *Hub) Disconnect(sub Subscriber) {
	h.mu.Lock()
	_, ok := h.subs[sub]
	if ok {
		delete(h.subs, sub)
	}
	n := len(h.subs)
	h.mu.Unlock()

	if ok {
		h.notifyCount(n)
		log.Printf("[%s] subscriber disconnected (%d active)", h.name, n)
	}
}

// Count returns the number of active subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Broadcast delivers the payload to every current subscriber. A failing
// subscriber never prevents delivery to the others: failures are collected
// during the iteration and the failed handles are removed afterwards, so the
// active set is not mutated mid-iteration. Returns the number of successful
// deliveries.
func (h *Hub) Broadcast(payload []byte) int {
	h.mu.RLock()
	targets := make([]Subscriber, 0, len(h.subs))
	for sub := range h.subs {
		targets = append(targets, sub)
	}
	h.mu.RUnlock()

	var failed []Subscriber
	delivered := 0
	for _, sub := range targets {
		if err := sub.Send(payload); err != nil {
			log.Printf("[%s] send failed, dropping subscriber: %v", h.name, err)
			if h.onSendFailure != nil {
				h.onSendFailure()
			}
			failed = append(failed, sub)
			continue
		}
		delivered++
	}

	if len(failed) > 0 {
		h.mu.Lock()
		for _, sub := range failed {
			delete(h.subs, sub)
		}
		n := len(h.subs)
		h.mu.Unlock()
		h.notifyCount(n)
	}

	return delivered
}

func (h *Hub) notifyCount(n int) {
	if h.onCountChange != nil {
		h.onCountChange(n)
	}
}
