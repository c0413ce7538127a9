package remote

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/xiaofan33/vueuse/pkg/storage"
)

// HubConfig configures a Hub.
type HubConfig struct {
	// MaxValueBytes caps the accepted body size of a PUT. Default: 1 MiB.
	MaxValueBytes int64

	// WriteTimeout bounds each WebSocket write. Default: 10 seconds.
	WriteTimeout time.Duration

	// PingInterval is the WebSocket keepalive period. Default: 30 seconds.
	PingInterval time.Duration

	// CheckOrigin validates the Origin header of WebSocket upgrades.
	// Default: accept all, hubs usually sit behind service-to-service auth.
	CheckOrigin func(r *http.Request) bool

	// Logger for connection and backend failures.
	Logger *slog.Logger
}

// DefaultHubConfig returns the default hub configuration.
func DefaultHubConfig() *HubConfig {
	return &HubConfig{
		MaxValueBytes: 1 << 20,
		WriteTimeout:  10 * time.Second,
		PingInterval:  30 * time.Second,
		CheckOrigin:   func(*http.Request) bool { return true },
	}
}

// Hub exposes a backend over HTTP.
//
//	GET    /kv/{key}  -> 200 with the raw value, 404 when absent
//	PUT    /kv/{key}  -> 204, body is the raw value
//	DELETE /kv/{key}  -> 204
//	GET    /events    -> WebSocket stream of change events
//	GET    /healthz   -> 200
//
// Every write through the hub is pushed to all event subscribers. When
// the wrapped backend emits its own native events (another process
// touching a shared file, for example) those are forwarded too.
type Hub struct {
	store    storage.Storage
	config   *HubConfig
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu           sync.Mutex
	clients      map[*hubClient]struct{}
	cancelNative func()
	closed       bool
}

// NewHub creates a hub serving store. A nil config uses defaults.
func NewHub(store storage.Storage, config *HubConfig) *Hub {
	if config == nil {
		config = DefaultHubConfig()
	} else {
		defaults := DefaultHubConfig()
		if config.MaxValueBytes == 0 {
			config.MaxValueBytes = defaults.MaxValueBytes
		}
		if config.WriteTimeout == 0 {
			config.WriteTimeout = defaults.WriteTimeout
		}
		if config.PingInterval == 0 {
			config.PingInterval = defaults.PingInterval
		}
		if config.CheckOrigin == nil {
			config.CheckOrigin = defaults.CheckOrigin
		}
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default().With("component", "remote-hub")
	}

	h := &Hub{
		store:   store,
		config:  config,
		logger:  logger,
		clients: make(map[*hubClient]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: config.CheckOrigin,
		},
	}

	if src, ok := store.(storage.EventSource); ok {
		h.cancelNative = src.Subscribe(func(e storage.Event) {
			h.broadcast(wireEvent{Key: e.Key, OldValue: e.OldValue, NewValue: e.NewValue})
		})
	}

	return h
}

// Handler returns the hub's HTTP handler, mountable under any router.
func (h *Hub) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/kv", h.handleList)
	r.Get("/kv/{key}", h.handleGet)
	r.Put("/kv/{key}", h.handlePut)
	r.Delete("/kv/{key}", h.handleDelete)
	r.Get("/events", h.handleEvents)
	return r
}

// Close disconnects all subscribers and stops forwarding native events.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := make([]*hubClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*hubClient]struct{})
	cancelNative := h.cancelNative
	h.cancelNative = nil
	h.mu.Unlock()

	if cancelNative != nil {
		cancelNative()
	}
	for _, c := range clients {
		c.close()
	}
}

func (h *Hub) handleList(w http.ResponseWriter, _ *http.Request) {
	lister, ok := h.store.(interface{ Keys() []string })
	if !ok {
		http.Error(w, "backend cannot enumerate keys", http.StatusNotImplemented)
		return
	}

	keys := lister.Keys()
	if keys == nil {
		keys = []string{}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(keys); err != nil {
		h.logger.Error("write key listing failed", "error", err)
	}
}

func (h *Hub) handleGet(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	value, ok, err := h.store.GetItem(key)
	if err != nil {
		h.logger.Error("backend read failed", "key", key, "error", err)
		http.Error(w, "backend error", http.StatusBadGateway)
		return
	}
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, value)
}

func (h *Hub) handlePut(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	body, err := io.ReadAll(io.LimitReader(r.Body, h.config.MaxValueBytes+1))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	if int64(len(body)) > h.config.MaxValueBytes {
		http.Error(w, "value too large", http.StatusRequestEntityTooLarge)
		return
	}
	value := string(body)

	old, hadOld, err := h.store.GetItem(key)
	if err != nil {
		h.logger.Error("backend read failed", "key", key, "error", err)
		http.Error(w, "backend error", http.StatusBadGateway)
		return
	}

	if err := h.store.SetItem(key, value); err != nil {
		h.logger.Error("backend write failed", "key", key, "error", err)
		http.Error(w, "backend error", http.StatusBadGateway)
		return
	}

	ev := wireEvent{Key: key, NewValue: &value}
	if hadOld {
		ev.OldValue = &old
	}
	h.broadcast(ev)

	w.WriteHeader(http.StatusNoContent)
}

func (h *Hub) handleDelete(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	old, hadOld, err := h.store.GetItem(key)
	if err != nil {
		h.logger.Error("backend read failed", "key", key, "error", err)
		http.Error(w, "backend error", http.StatusBadGateway)
		return
	}

	if err := h.store.RemoveItem(key); err != nil {
		h.logger.Error("backend remove failed", "key", key, "error", err)
		http.Error(w, "backend error", http.StatusBadGateway)
		return
	}

	if hadOld {
		h.broadcast(wireEvent{Key: key, OldValue: &old})
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Hub) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &hubClient{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 64),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go c.writeLoop()
	c.readLoop()
}

// broadcast fans an event out to every connected subscriber. Slow
// subscribers whose send buffer is full get dropped rather than stalling
// the rest.
func (h *Hub) broadcast(ev wireEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("event encode failed", "error", err)
		return
	}

	h.mu.Lock()
	var stalled []*hubClient
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			stalled = append(stalled, c)
		}
	}
	for _, c := range stalled {
		delete(h.clients, c)
	}
	h.mu.Unlock()

	for _, c := range stalled {
		h.logger.Warn("dropping slow event subscriber")
		c.close()
	}
}

func (h *Hub) unregister(c *hubClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// hubClient is one WebSocket event subscriber.
type hubClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

func (c *hubClient) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// readLoop drains the connection so pings are answered and closure is
// detected. Subscribers never send application messages.
func (c *hubClient) readLoop() {
	defer func() {
		c.hub.unregister(c)
		c.close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.hub.logger.Error("read error", "error", err)
			}
			return
		}
	}
}

func (c *hubClient) writeLoop() {
	ticker := time.NewTicker(c.hub.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}

		case <-c.done:
			return
		}
	}
}
