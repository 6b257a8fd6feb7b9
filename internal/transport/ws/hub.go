package ws

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/samber/lo"

	"github.com/cwrk-planet/rendezvous/internal/domain"
)

var (
	ErrConnClosed     = errors.New("ws connection closed")
	ErrSendBufferFull = errors.New("ws send buffer full")
)

type Conn interface {
	ID() domain.ParticipantID
	// Send queues msg without blocking. It fails with ErrConnClosed or
	// ErrSendBufferFull.
	Send(msg Message) error
	Close() error
}

// Hub maps participant ids to live sockets and implements
// matchmaker.Notifier for push participants. A connection stays in the hub
// for its whole lifetime, across leave and rejoin.
type Hub struct {
	mu    sync.RWMutex
	conns map[domain.ParticipantID]Conn
	log   *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		conns: make(map[domain.ParticipantID]Conn),
		log:   log.With("component", "ws_hub"),
	}
}

func (h *Hub) Add(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c.ID()] = c
}

func (h *Hub) Remove(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.conns[c.ID()]; ok && cur == c {
		delete(h.conns, c.ID())
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) IDs() []domain.ParticipantID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return lo.Keys(h.conns)
}

// Deliver never blocks. A connection that cannot keep up is closed, which
// tears its participant down through the read loop.
func (h *Hub) Deliver(_ context.Context, id domain.ParticipantID, ev domain.Event) {
	h.mu.RLock()
	c, ok := h.conns[id]
	h.mu.RUnlock()
	if !ok {
		return
	}
	switch err := c.Send(EventMessage(ev)); {
	case err == nil:
	case errors.Is(err, ErrSendBufferFull):
		h.log.Warn("ws send buffer full, closing connection", "participant", id, "event", ev.Type)
		_ = c.Close()
	default:
		h.log.Debug("ws event for closing connection dropped", "participant", id, "event", ev.Type)
	}
}

// Release is a no-op: the socket outlives registration so the client can
// start another chat. Banned sockets close themselves after the banned
// frame is written.
func (h *Hub) Release(domain.ParticipantID) {}
