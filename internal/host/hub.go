// Package host receives client lifecycle events from the game server and fans
// them out to subscribers.
package host

import (
	"sync"

	"go.uber.org/zap"
)

// Event describes one client as reported by the game host.
type Event struct {
	Name    string `json:"name"`
	SteamID string `json:"steam_id"`
	Car     string `json:"car"`
}

// Hub tracks which clients the host reports as connected and loaded.
//
// A loaded event is only forwarded for a client the hub saw connect; a client
// that loads without a prior connect is dropped. Handlers run synchronously on
// the publishing goroutine, and deliveries are serialised, so a disconnect
// posted while a loaded event for the same client is being handled is seen
// by subscribers after it.
type Hub struct {
	log *zap.Logger

	// deliver serialises state change plus handler calls across events.
	deliver sync.Mutex

	mu        sync.RWMutex
	connected map[string]Event
	loaded    map[string]Event

	handlersMu     sync.RWMutex
	onLoaded       []func(Event)
	onDisconnected []func(Event)
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		log:       log.Named("host"),
		connected: make(map[string]Event),
		loaded:    make(map[string]Event),
	}
}

// OnClientLoaded registers fn for "client finished loading" events.
func (h *Hub) OnClientLoaded(fn func(Event)) {
	h.handlersMu.Lock()
	h.onLoaded = append(h.onLoaded, fn)
	h.handlersMu.Unlock()
}

// OnClientDisconnected registers fn for "client disconnected" events.
func (h *Hub) OnClientDisconnected(fn func(Event)) {
	h.handlersMu.Lock()
	h.onDisconnected = append(h.onDisconnected, fn)
	h.handlersMu.Unlock()
}

// ClientConnected records a raw connect. No handler fires until the client loads.
func (h *Hub) ClientConnected(e Event) {
	h.deliver.Lock()
	defer h.deliver.Unlock()

	h.mu.Lock()
	if e.SteamID != "" {
		h.connected[e.SteamID] = e
	}
	h.mu.Unlock()
	h.log.Debug("client connected", zap.String("client", e.Name), zap.String("steam_id", e.SteamID))
}

// ClientLoaded forwards a finished load for a client that connected earlier.
// It reports whether subscribers were notified.
func (h *Hub) ClientLoaded(e Event) bool {
	h.deliver.Lock()
	defer h.deliver.Unlock()

	h.mu.Lock()
	_, connected := h.connected[e.SteamID]
	if connected {
		h.connected[e.SteamID] = e
		h.loaded[e.SteamID] = e
	}
	h.mu.Unlock()

	if !connected {
		h.log.Warn("loaded event for client that never connected, ignoring",
			zap.String("client", e.Name), zap.String("steam_id", e.SteamID))
		return false
	}

	h.handlersMu.RLock()
	handlers := h.onLoaded
	h.handlersMu.RUnlock()
	for _, fn := range handlers {
		fn(e)
	}
	return true
}

// ClientDisconnected forgets the client and notifies subscribers. A missing
// car is filled in from the loaded record.
func (h *Hub) ClientDisconnected(e Event) {
	h.deliver.Lock()
	defer h.deliver.Unlock()

	h.mu.Lock()
	if prev, ok := h.loaded[e.SteamID]; ok && e.Car == "" {
		e.Car = prev.Car
	}
	delete(h.connected, e.SteamID)
	delete(h.loaded, e.SteamID)
	h.mu.Unlock()

	h.handlersMu.RLock()
	handlers := h.onDisconnected
	h.handlersMu.RUnlock()
	for _, fn := range handlers {
		fn(e)
	}
}

// Loaded lists clients that have loaded and not yet disconnected.
func (h *Hub) Loaded() []Event {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Event, 0, len(h.loaded))
	for _, e := range h.loaded {
		out = append(out, e)
	}
	return out
}

// Connected reports how many clients are connected, loaded or not.
func (h *Hub) Connected() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connected)
}
