// Package gateway implements C7: the WebSocket fan-out surface. One
// Connection per socket runs a read pump and a write pump goroutine, the
// standard gorilla/websocket split (each conn needs its own writer since
// websocket.Conn forbids concurrent writes), generalized here to read
// subscribe/unsubscribe control frames and write progress events fanned out
// from internal/progress's Redis pub/sub.
package gateway

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/clipforge/highlighter/internal/domain"
	"github.com/clipforge/highlighter/internal/log"
	"github.com/clipforge/highlighter/internal/metrics"
	"github.com/gorilla/websocket"
)

const (
	pingInterval   = 25 * time.Second
	pongTimeout    = 30 * time.Second
	outboundBuffer = 256
)

// clientMessage is an inbound control frame per §4.7's protocol:
// {"type":"sync_subscriptions","project_ids":[...]} or {"type":"ping"}.
type clientMessage struct {
	Type       string   `json:"type"`
	ProjectIDs []string `json:"project_ids,omitempty"`
}

// serverFrame is an outbound frame: either a progress event or a pong.
// Status is the coarse status §4.7/§7 require the wire protocol to carry,
// deriving from the underlying ProgressEvent rather than forwarding its raw
// (mostly-empty) Message, since the rest of the system's project status is
// one of the full taxonomy, not this simplified client-facing one.
type serverFrame struct {
	Type        string `json:"type"`
	ProjectID   string `json:"project_id,omitempty"`
	Stage       string `json:"stage,omitempty"`
	Percent     int    `json:"percent,omitempty"`
	Status      string `json:"status,omitempty"`
	TimestampMs int64  `json:"timestamp_ms,omitempty"`
	Snapshot    bool   `json:"snapshot,omitempty"`
}

// coarseStatus derives the wire protocol's status ∈ {running, completed,
// failed, cancelled} from a ProgressEvent. The orchestrator's terminal
// events (internal/pipeline's publishTerminal) carry the coarse status
// itself as Message; anything else is still in flight.
func coarseStatus(ev domain.ProgressEvent) string {
	switch ev.Message {
	case "completed", "failed", "cancelled":
		return ev.Message
	default:
		return "running"
	}
}

// Connection wraps one client socket: its current subscription set and a
// bounded outbound queue. Outbound is drained by writePump; a full queue
// drops the oldest queued frame, whether or not it is a snapshot, rather
// than blocking the reader, since a slow client must never stall progress
// delivery to everyone else
// (§5 "bounded per-connection outbound queue, drop-oldest under backpressure").
type Connection struct {
	id   string
	conn *websocket.Conn
	hub  *Hub

	mu            sync.Mutex
	channels      map[string]bool
	lastPercent   map[string]int
	outbound      chan serverFrame
	closed        bool
}

func newConnection(id string, conn *websocket.Conn, hub *Hub) *Connection {
	return &Connection{
		id:          id,
		conn:        conn,
		hub:         hub,
		channels:    make(map[string]bool),
		lastPercent: make(map[string]int),
		outbound:    make(chan serverFrame, outboundBuffer),
	}
}

// enqueue pushes a frame to this connection's outbound queue, dropping the
// oldest queued frame if full. Progress frames for a channel are dropped if
// their percent falls below what was last sent to this client (§8
// "per-client monotonic percent frame dropping"), independent of the
// fabric's own server-side monotonicity guard; a frame at the same percent,
// such as a terminal event, is still delivered.
func (c *Connection) enqueue(f serverFrame) {
	c.mu.Lock()
	if f.Type == "progress" {
		if last, ok := c.lastPercent[f.ProjectID]; ok && f.Percent < last && !f.Snapshot {
			c.mu.Unlock()
			return
		}
		c.lastPercent[f.ProjectID] = f.Percent
	}
	c.mu.Unlock()

	select {
	case c.outbound <- f:
	default:
		select {
		case <-c.outbound:
			metrics.Metrics.GatewayOutboundDropped.WithLabelValues("backpressure").Inc()
		default:
		}
		select {
		case c.outbound <- f:
		default:
			metrics.Metrics.GatewayOutboundDropped.WithLabelValues("backpressure").Inc()
		}
	}
}

// subscribedTo reports whether this connection currently wants channel.
func (c *Connection) subscribedTo(channel string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channels[channel]
}

func (c *Connection) readPump() {
	defer c.hub.unregister(c)
	c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Warn(c.id, "gateway received unparseable frame", "err", err.Error())
			continue
		}
		c.handleMessage(msg)
	}
}

func (c *Connection) handleMessage(msg clientMessage) {
	switch msg.Type {
	case "sync_subscriptions":
		c.syncSubscriptions(msg.ProjectIDs)
	case "ping":
		c.enqueue(serverFrame{Type: "pong"})
	default:
		log.Debug(c.id, "gateway ignoring unknown frame type", "type", msg.Type)
	}
}

// syncSubscriptions reconciles this connection's channel set to exactly
// wanted, idempotently: calling it twice with the same set is a no-op
// against the hub's reference counts (§4.7 "sync_subscriptions is
// idempotent").
func (c *Connection) syncSubscriptions(wanted []string) {
	want := make(map[string]bool, len(wanted))
	for _, ch := range wanted {
		want[normalizeChannel(ch)] = true
	}

	c.mu.Lock()
	var toAdd, toRemove []string
	for ch := range want {
		if !c.channels[ch] {
			toAdd = append(toAdd, ch)
		}
	}
	for ch := range c.channels {
		if !want[ch] {
			toRemove = append(toRemove, ch)
		}
	}
	for _, ch := range toAdd {
		c.channels[ch] = true
	}
	for _, ch := range toRemove {
		delete(c.channels, ch)
	}
	c.mu.Unlock()

	for _, ch := range toAdd {
		c.hub.subscribe(c, ch)
	}
	for _, ch := range toRemove {
		c.hub.unsubscribe(c, ch)
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer c.conn.Close()

	for {
		select {
		case frame, ok := <-c.outbound:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(frame); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				metrics.Metrics.GatewayHeartbeatTimeouts.Inc()
				return
			}
		}
	}
}

func (c *Connection) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	close(c.outbound)
}
