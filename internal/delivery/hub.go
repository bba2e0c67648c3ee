// Package delivery exposes the event stream and a small HTTP surface:
// a WebSocket fan-out of every bus event, JSON endpoints for recent
// maps, sessions and items, and a session control endpoint that feeds
// command events back into the pipeline.
package delivery

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/oraclelog/oracle-go/internal/bus"
	"github.com/oraclelog/oracle-go/pkg/oracle/event"
)

// clientQueueSize bounds each client's send queue. A client that falls
// this far behind is dropped rather than stalling the broadcast.
const clientQueueSize = 64

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// Hub fans every bus event out to the connected WebSocket clients as
// JSON, preserving arrival order per client. Delivery is best effort:
// no backfill, slow clients are disconnected.
type Hub struct {
	log *slog.Logger
	bus *bus.Bus
	sub *bus.Subscription

	mu      sync.Mutex
	clients map[uuid.UUID]*client
	closed  bool
}

type client struct {
	id    uuid.UUID
	conn  *websocket.Conn
	queue chan []byte
	stop  chan struct{}
	once  sync.Once
}

// NewHub subscribes to the full event feed of b.
func NewHub(b *bus.Bus, log *slog.Logger) *Hub {
	if log == nil {
		log = discardLogger
	}
	h := &Hub{
		log:     log,
		bus:     b,
		clients: map[uuid.UUID]*client{},
	}
	h.sub = b.SubscribeAll("delivery", h.onEvent)
	return h
}

// Publish forwards an event onto the bus, used by the control API to
// inject command events into the pipeline.
func (h *Hub) Publish(ev event.Event) {
	h.bus.Publish(ev)
}

func (h *Hub) onEvent(ev event.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	h.broadcast(data)
	return nil
}

func (h *Hub) broadcast(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		select {
		case c.queue <- data:
		default:
			// Queue full; the client is not keeping up.
			h.log.Warn("dropping slow client", "client_id", id)
			delete(h.clients, id)
			c.shutdown()
		}
	}
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeWS upgrades the request and streams events until the client
// disconnects or the hub closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // local tool, any origin may connect
	})
	if err != nil {
		h.log.Error("websocket accept failed", "error", err)
		return
	}

	c := &client{
		id:    uuid.New(),
		conn:  conn,
		queue: make(chan []byte, clientQueueSize),
		stop:  make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close(websocket.StatusGoingAway, "shutting down")
		return
	}
	h.clients[c.id] = c
	h.mu.Unlock()
	h.log.Info("client connected", "client_id", c.id)

	// Inbound frames are ignored; CloseRead surfaces the disconnect.
	ctx := c.conn.CloseRead(r.Context())
	h.writePump(ctx, c)

	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()
	c.shutdown()
	h.log.Info("client disconnected", "client_id", c.id)
}

func (h *Hub) writePump(ctx context.Context, c *client) {
	for {
		select {
		case data := <-c.queue:
			if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
				return
			}
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		}
	}
}

func (c *client) shutdown() {
	c.once.Do(func() {
		close(c.stop)
		_ = c.conn.Close(websocket.StatusGoingAway, "")
	})
}

// Close disconnects every client and unsubscribes from the bus.
func (h *Hub) Close() {
	h.sub.Close()

	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = map[uuid.UUID]*client{}
	h.mu.Unlock()

	for _, c := range clients {
		c.shutdown()
	}
}
