package gateway

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/clipforge/highlighter/internal/log"
	"github.com/clipforge/highlighter/internal/metrics"
	"github.com/clipforge/highlighter/internal/progress"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub owns every live Connection and, per channel, a single fabric
// subscriber task fanned out to every connection currently subscribed to
// it (§5 "one subscriber task per broker channel", not one per
// connection). A channel's subscriber task starts on its first subscriber
// and stops on its last unsubscribe.
type Hub struct {
	fabric *progress.Fabric

	mu          sync.Mutex
	conns       map[string]*Connection
	subscribers map[string]map[*Connection]bool
	cancels     map[string]context.CancelFunc
}

// NewHub builds a Hub backed by fabric.
func NewHub(fabric *progress.Fabric) *Hub {
	return &Hub{
		fabric:      fabric,
		conns:       make(map[string]*Connection),
		subscribers: make(map[string]map[*Connection]bool),
		cancels:     make(map[string]context.CancelFunc),
	}
}

// ServeHTTP upgrades the request to a websocket and runs the connection
// until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.NoID("gateway upgrade failed", "err", err.Error())
		return
	}

	c := newConnection(uuid.NewString(), conn, h)
	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()
	metrics.Metrics.GatewayConnections.Set(float64(len(h.conns)))

	go c.writePump()
	c.readPump()
}

func (h *Hub) unregister(c *Connection) {
	h.mu.Lock()
	delete(h.conns, c.id)
	channels := make([]string, 0, len(c.channels))
	for ch := range c.channels {
		channels = append(channels, ch)
	}
	h.mu.Unlock()
	metrics.Metrics.GatewayConnections.Set(float64(len(h.conns)))

	for _, ch := range channels {
		h.unsubscribe(c, ch)
	}
	c.close()
}

// subscribe adds c to channel's subscriber set, starting the channel's
// fabric subscriber task if this is the first subscriber, and immediately
// replays the last known snapshot for that project (§4.7 "on subscribe,
// immediately send the last known snapshot").
func (h *Hub) subscribe(c *Connection, channel string) {
	h.mu.Lock()
	subs, ok := h.subscribers[channel]
	if !ok {
		subs = make(map[*Connection]bool)
		h.subscribers[channel] = subs
	}
	first := len(subs) == 0
	subs[c] = true
	h.mu.Unlock()
	metrics.Metrics.GatewaySubscriptions.Set(float64(h.totalSubscriptions()))

	if first {
		h.startChannelSubscriber(channel)
	}

	if projectID, err := uuid.Parse(strings.TrimPrefix(channel, "progress:project:")); err == nil {
		if snap, ok, err := h.fabric.GetSnapshot(context.Background(), projectID); err == nil && ok {
			c.enqueue(serverFrame{
				Type:        "progress",
				ProjectID:   snap.ProjectID.String(),
				Stage:       string(snap.Stage),
				Percent:     snap.Percent,
				Status:      coarseStatus(*snap),
				TimestampMs: snap.TimestampMs,
				Snapshot:    true,
			})
		}
	}
}

// unsubscribe removes c from channel's subscriber set, stopping the
// channel's fabric subscriber task if c was the last subscriber.
func (h *Hub) unsubscribe(c *Connection, channel string) {
	h.mu.Lock()
	subs, ok := h.subscribers[channel]
	if ok {
		delete(subs, c)
	}
	last := ok && len(subs) == 0
	var cancel context.CancelFunc
	if last {
		cancel = h.cancels[channel]
		delete(h.cancels, channel)
		delete(h.subscribers, channel)
	}
	h.mu.Unlock()
	metrics.Metrics.GatewaySubscriptions.Set(float64(h.totalSubscriptions()))

	if cancel != nil {
		cancel()
	}
}

func (h *Hub) totalSubscriptions() int {
	total := 0
	for _, subs := range h.subscribers {
		total += len(subs)
	}
	return total
}

func (h *Hub) startChannelSubscriber(channel string) {
	ctx, cancel := context.WithCancel(context.Background())
	h.mu.Lock()
	h.cancels[channel] = cancel
	h.mu.Unlock()

	sub := h.fabric.Subscribe(ctx, channel)
	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub.Channel():
				if !ok {
					return
				}
				ev, err := progress.DecodeEvent([]byte(msg.Payload))
				if err != nil {
					log.Warn("", "gateway failed decoding progress event", "channel", channel, "err", err.Error())
					continue
				}
				frame := serverFrame{
					Type:        "progress",
					ProjectID:   ev.ProjectID.String(),
					Stage:       string(ev.Stage),
					Percent:     ev.Percent,
					Status:      coarseStatus(ev),
					TimestampMs: ev.TimestampMs,
				}
				h.mu.Lock()
				targets := make([]*Connection, 0, len(h.subscribers[channel]))
				for c := range h.subscribers[channel] {
					targets = append(targets, c)
				}
				h.mu.Unlock()
				for _, c := range targets {
					c.enqueue(frame)
				}
			}
		}
	}()
}

func normalizeChannel(ch string) string {
	return progress.Normalize(ch)
}
