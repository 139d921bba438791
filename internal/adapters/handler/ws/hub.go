package ws

import (
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
	"github.com/vncsmyrnk/livepoll/internal/metrics"
)

// Hub tracks live connections and implements ports.Emitter. A client whose
// send queue is full is dropped rather than blocking the caller.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	log     logrus.FieldLogger
}

var _ ports.Emitter = (*Hub)(nil)

func NewHub(log logrus.FieldLogger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		log:     log,
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()

	metrics.ActiveConnections.Inc()
	metrics.TotalConnections.Inc()
}

func (h *Hub) unregister(id string) {
	h.mu.Lock()
	_, ok := h.clients[id]
	delete(h.clients, id)
	h.mu.Unlock()

	if ok {
		metrics.ActiveConnections.Dec()
	}
}

func (h *Hub) client(id string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[id]
	return c, ok
}

func (h *Hub) Send(connID string, event domain.Event) {
	c, ok := h.client(connID)
	if !ok {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		h.log.WithError(err).WithField("event", event.Name).Error("failed to encode event")
		return
	}
	h.deliver(c, frame{data: data})
}

func (h *Hub) Broadcast(event domain.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.WithError(err).WithField("event", event.Name).Error("failed to encode event")
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.deliver(c, frame{data: data})
	}
}

// Disconnect closes connID after frames already queued for it are written.
func (h *Hub) Disconnect(connID string, reason string) {
	c, ok := h.client(connID)
	if !ok {
		return
	}
	if !c.enqueue(frame{close: true, closeReason: reason}) {
		c.shutdown()
	}
}

// CloseAll closes every connection with a going-away reason.
func (h *Hub) CloseAll(reason string) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.enqueue(frame{close: true, closeReason: reason}) {
			c.shutdown()
		}
	}
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) deliver(c *Client, f frame) {
	if c.enqueue(f) {
		return
	}
	select {
	case <-c.done:
		return
	default:
	}
	metrics.SlowConsumerDrops.Inc()
	h.log.WithField("conn_id", c.ID).Warn("send queue full, dropping connection")
	c.shutdown()
}
