package remote

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xiaofan33/vueuse/pkg/storage"
)

// Client is a backend served by a remote Hub. It satisfies the storage
// contract and emits native change events for every change the hub
// pushes, so a binding backed by a Client stays synchronized with
// bindings in other processes connected to the same hub.
type Client struct {
	baseURL string
	httpc   *http.Client
	dialer  *websocket.Dialer
	logger  *slog.Logger

	reconnectWait time.Duration

	subMu  sync.RWMutex
	nextID uint64
	subs   map[uint64]func(storage.Event)

	mu        sync.Mutex
	conn      *websocket.Conn
	listening bool

	done     chan struct{}
	stopOnce sync.Once
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client used for reads and writes.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		cl.httpc = c
	}
}

// WithDialer sets the WebSocket dialer for the event stream.
func WithDialer(d *websocket.Dialer) ClientOption {
	return func(cl *Client) {
		cl.dialer = d
	}
}

// WithReconnectWait sets the delay between event stream reconnection
// attempts. Default: 2 seconds.
func WithReconnectWait(d time.Duration) ClientOption {
	return func(cl *Client) {
		cl.reconnectWait = d
	}
}

// WithClientLogger sets the logger for connection failures.
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(cl *Client) {
		cl.logger = l
	}
}

// NewClient creates a client for the hub at baseURL, for example
// "http://localhost:8575".
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		httpc:         &http.Client{Timeout: 10 * time.Second},
		dialer:        websocket.DefaultDialer,
		logger:        slog.Default().With("component", "remote-client"),
		reconnectWait: 2 * time.Second,
		subs:          make(map[uint64]func(storage.Event)),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetItem returns the value stored under key on the hub.
func (c *Client) GetItem(key string) (string, bool, error) {
	resp, err := c.httpc.Get(c.keyURL(key))
	if err != nil {
		return "", false, fmt.Errorf("remote get %q: %w", key, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", false, fmt.Errorf("remote get %q: %w", key, err)
		}
		return string(data), true, nil
	case http.StatusNotFound:
		return "", false, nil
	default:
		return "", false, fmt.Errorf("remote get %q: unexpected status %d", key, resp.StatusCode)
	}
}

// SetItem stores value under key on the hub.
func (c *Client) SetItem(key, value string) error {
	req, err := http.NewRequest(http.MethodPut, c.keyURL(key), strings.NewReader(value))
	if err != nil {
		return fmt.Errorf("remote set %q: %w", key, err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("remote set %q: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("remote set %q: unexpected status %d", key, resp.StatusCode)
	}
	return nil
}

// RemoveItem deletes key on the hub.
func (c *Client) RemoveItem(key string) error {
	req, err := http.NewRequest(http.MethodDelete, c.keyURL(key), nil)
	if err != nil {
		return fmt.Errorf("remote remove %q: %w", key, err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("remote remove %q: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("remote remove %q: unexpected status %d", key, resp.StatusCode)
	}
	return nil
}

// Keys lists all keys stored on the hub. Fails when the hub's backend
// cannot enumerate keys.
func (c *Client) Keys() ([]string, error) {
	resp, err := c.httpc.Get(c.baseURL + "/kv")
	if err != nil {
		return nil, fmt.Errorf("remote keys: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remote keys: unexpected status %d", resp.StatusCode)
	}

	var keys []string
	if err := json.NewDecoder(resp.Body).Decode(&keys); err != nil {
		return nil, fmt.Errorf("remote keys: %w", err)
	}
	return keys, nil
}

// Subscribe registers fn for hub change events, connecting the event
// stream on first use. Implements the native event source contract.
func (c *Client) Subscribe(fn func(storage.Event)) (cancel func()) {
	c.subMu.Lock()
	c.nextID++
	id := c.nextID
	c.subs[id] = fn
	c.subMu.Unlock()

	c.ensureListening()

	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		delete(c.subs, id)
	}
}

// Close stops the event stream. In-flight HTTP requests are unaffected.
func (c *Client) Close() error {
	c.stopOnce.Do(func() { close(c.done) })

	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	return nil
}

func (c *Client) keyURL(key string) string {
	return c.baseURL + "/kv/" + url.PathEscape(key)
}

func (c *Client) eventsURL() string {
	u := c.baseURL + "/events"
	switch {
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u
}

func (c *Client) ensureListening() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.listening {
		return
	}
	c.listening = true
	go c.listenLoop()
}

// listenLoop maintains the event stream, redialing after failures until
// the client is closed.
func (c *Client) listenLoop() {
	for {
		select {
		case <-c.done:
			return
		default:
		}

		conn, _, err := c.dialer.Dial(c.eventsURL(), nil)
		if err != nil {
			c.logger.Warn("event stream dial failed", "error", err)
			select {
			case <-c.done:
				return
			case <-time.After(c.reconnectWait):
				continue
			}
		}

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()

		c.readEvents(conn)

		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		conn.Close()
	}
}

func (c *Client) readEvents(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.logger.Warn("event stream closed", "error", err)
			}
			return
		}

		var ev wireEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			c.logger.Error("event decode failed", "error", err)
			continue
		}

		c.emit(storage.Event{
			Storage:  c,
			Key:      ev.Key,
			OldValue: ev.OldValue,
			NewValue: ev.NewValue,
		})
	}
}

func (c *Client) emit(e storage.Event) {
	c.subMu.RLock()
	subs := make([]func(storage.Event), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.subMu.RUnlock()

	for _, fn := range subs {
		fn(e)
	}
}
