package mockexchange

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// wsConnection pairs a gorilla connection with the mutex gorilla requires
// around concurrent writes (only one goroutine may call WriteMessage on a
// *websocket.Conn at a time).
type wsConnection struct {
	id   uuid.UUID
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConnection) writeText(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub is the subscription tracker: a set of live connections, and a map
// from internal topic key to the set of connections subscribed to it.
// This generalizes a single client's outbound subscriptions into a
// server-side connection×topic matrix, keyed by a uuid per connection.
type Hub struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]*wsConnection
	subs  map[string]map[uuid.UUID]struct{}
	log   zerolog.Logger
}

// NewHub builds an empty Hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		conns: make(map[uuid.UUID]*wsConnection),
		subs:  make(map[string]map[uuid.UUID]struct{}),
		log:   log,
	}
}

// Register adds a freshly-upgraded connection and returns its id.
func (h *Hub) Register(conn *websocket.Conn) uuid.UUID {
	id := uuid.New()
	h.mu.Lock()
	h.conns[id] = &wsConnection{id: id, conn: conn}
	h.mu.Unlock()
	return id
}

// Unregister removes a connection and every subscription it held.
func (h *Hub) Unregister(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, id)
	for key, set := range h.subs {
		delete(set, id)
		if len(set) == 0 {
			delete(h.subs, key)
		}
	}
}

// Subscribe records that connection id is listening to key.
func (h *Hub) Subscribe(id uuid.UUID, key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[key]
	if !ok {
		set = make(map[uuid.UUID]struct{})
		h.subs[key] = set
	}
	set[id] = struct{}{}
}

// Unsubscribe drops connection id's subscription to key.
func (h *Hub) Unsubscribe(id uuid.UUID, key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[key]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(h.subs, key)
		}
	}
}

// sendTo writes frame directly to one connection, used for subscribe acks
// and the initial "send the current last bar" handshake.
func (h *Hub) sendTo(id uuid.UUID, frame []byte) {
	h.mu.RLock()
	c, ok := h.conns[id]
	h.mu.RUnlock()
	if !ok {
		return
	}
	if err := c.writeText(frame); err != nil {
		h.log.Debug().Err(err).Str("conn", id.String()).Msg("mock exchange: write to closed connection")
	}
}

// broadcastCandle is the single broadcast primitive every code path uses
// to push a candle frame to every connection subscribed to key, used by
// the background generator's tick loop. The subscribe handshake writes to
// the one subscribing connection through sendTo instead.
func (h *Hub) broadcastCandle(key string, frame []byte) {
	h.mu.RLock()
	set := h.subs[key]
	ids := make([]uuid.UUID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	conns := make([]*wsConnection, 0, len(ids))
	for _, id := range ids {
		if c, ok := h.conns[id]; ok {
			conns = append(conns, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.writeText(frame); err != nil {
			h.log.Debug().Err(err).Str("conn", c.id.String()).Msg("mock exchange: broadcast to closed connection")
		}
	}
}

// ConnCount reports the number of currently registered connections, used
// by tests asserting on connection registration.
func (h *Hub) ConnCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
