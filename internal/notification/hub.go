package notification

import (
	"context"
	"hash/fnv"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 512
	sendBufferSize = 64
	pendingPerUser = 32

	// PendingTTL bounds how long messages wait for an offline user.
	PendingTTL = 15 * time.Minute
	// maxPendingUsers caps offline buffers per shard; the stalest is evicted.
	maxPendingUsers = 1024
)

// ringBuffer holds the last N messages for a user without a live connection.
type ringBuffer struct {
	buf     [][]byte
	start   int
	count   int
	touched time.Time
}

func newRingBuffer(size int) *ringBuffer {
	return &ringBuffer{buf: make([][]byte, size)}
}

// add appends a message, overwriting old entries when full.
func (r *ringBuffer) add(msg []byte) {
	size := len(r.buf)
	idx := (r.start + r.count) % size
	if r.count == size {
		r.start = (r.start + 1) % size
		r.count--
	}
	r.buf[idx] = msg
	r.count++
}

// drain returns the buffered messages in order and empties the buffer.
func (r *ringBuffer) drain() [][]byte {
	out := make([][]byte, 0, r.count)
	for i := 0; i < r.count; i++ {
		out = append(out, r.buf[(r.start+i)%len(r.buf)])
	}
	r.start, r.count = 0, 0
	return out
}

// Client represents a single WebSocket connection of a user.
type Client struct {
	userID string
	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub
}

// Hub tracks live connections per user, sharded to keep lock contention low.
// Messages for users who are offline are kept in a small per-user buffer and
// flushed when they connect.
type Hub struct {
	shards     []*hubShard
	shardCount uint32
	upgrader   websocket.Upgrader
	logger     *zap.Logger
	now        func() time.Time
}

type hubShard struct {
	mu      sync.Mutex
	clients map[string]map[*Client]struct{}
	pending map[string]*ringBuffer
}

// NewHub creates a Hub with the given shard count.
func NewHub(shardCount int, logger *zap.Logger) *Hub {
	if shardCount <= 0 {
		shardCount = 16
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		shards:     make([]*hubShard, shardCount),
		shardCount: uint32(shardCount),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
		now:    time.Now,
	}
	for i := range h.shards {
		h.shards[i] = &hubShard{
			clients: make(map[string]map[*Client]struct{}),
			pending: make(map[string]*ringBuffer),
		}
	}
	return h
}

func (h *Hub) shardFor(key string) *hubShard {
	hasher := fnv.New32a()
	hasher.Write([]byte(key))
	return h.shards[hasher.Sum32()%h.shardCount]
}

// ServeWS upgrades HTTP to WS and registers the connection for userID.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &Client{
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		hub:    h,
	}
	h.register(c)
	go c.writePump()
	go c.readPump()
	return nil
}

func (h *Hub) register(c *Client) {
	sh := h.shardFor(c.userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	set, ok := sh.clients[c.userID]
	if !ok {
		set = make(map[*Client]struct{})
		sh.clients[c.userID] = set
	}
	set[c] = struct{}{}

	if buf, ok := sh.pending[c.userID]; ok {
		for _, msg := range buf.drain() {
			c.send <- msg
		}
		delete(sh.pending, c.userID)
	}
	h.logger.Debug("Websocket client registered", zap.String("user_id", c.userID))
}

func (h *Hub) unregister(c *Client) {
	sh := h.shardFor(c.userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if set, ok := sh.clients[c.userID]; ok {
		if _, ok := set[c]; ok {
			delete(set, c)
			close(c.send)
		}
		if len(set) == 0 {
			delete(sh.clients, c.userID)
		}
	}
}

// SendToUser delivers data to every live connection of the user and returns
// the number of connections reached. With no live connection the message is
// buffered for the next connect.
func (h *Hub) SendToUser(userID string, data []byte) int {
	sh := h.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	set := sh.clients[userID]
	if len(set) == 0 {
		buf, ok := sh.pending[userID]
		if !ok {
			if len(sh.pending) >= maxPendingUsers {
				sh.evictStalest()
			}
			buf = newRingBuffer(pendingPerUser)
			sh.pending[userID] = buf
		}
		buf.add(data)
		buf.touched = h.now()
		return 0
	}

	delivered := 0
	for c := range set {
		select {
		case c.send <- data:
			delivered++
		default:
			// drop slow client
			h.logger.Warn("Dropping message for slow websocket client", zap.String("user_id", userID))
		}
	}
	return delivered
}

// evictStalest must be called with mu held.
func (sh *hubShard) evictStalest() {
	var oldest string
	var oldestAt time.Time
	for userID, buf := range sh.pending {
		if oldest == "" || buf.touched.Before(oldestAt) {
			oldest, oldestAt = userID, buf.touched
		}
	}
	delete(sh.pending, oldest)
}

// SweepPending drops offline buffers untouched for longer than ttl and
// returns how many were dropped.
func (h *Hub) SweepPending(ttl time.Duration) int {
	cutoff := h.now().Add(-ttl)
	dropped := 0
	for _, sh := range h.shards {
		sh.mu.Lock()
		for userID, buf := range sh.pending {
			if buf.touched.Before(cutoff) {
				delete(sh.pending, userID)
				dropped++
			}
		}
		sh.mu.Unlock()
	}
	return dropped
}

// StartSweeper runs SweepPending every interval until ctx is canceled.
func (h *Hub) StartSweeper(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := h.SweepPending(ttl); n > 0 {
				h.logger.Debug("Dropped stale websocket buffers", zap.Int("users", n))
			}
		case <-ctx.Done():
			return
		}
	}
}

// pendingUsers counts offline buffers across shards.
func (h *Hub) pendingUsers() int {
	total := 0
	for _, sh := range h.shards {
		sh.mu.Lock()
		total += len(sh.pending)
		sh.mu.Unlock()
	}
	return total
}

// Connected reports whether the user has at least one live connection.
func (h *Hub) Connected(userID string) bool {
	sh := h.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return len(sh.clients[userID]) > 0
}

// readPump keeps the read deadline fresh; clients do not send commands.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump sends messages and heartbeats to the client.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
