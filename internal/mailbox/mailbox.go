// Package mailbox buffers engine events for participants that poll over
// HTTP instead of holding a socket.
package mailbox

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/cwrk-planet/rendezvous/internal/domain"
)

const (
	DefaultSize = 64

	// RetainReleased bounds how long a released box holding a ban notice
	// waits for its final Drain.
	RetainReleased = time.Minute
)

type box struct {
	events  []domain.Event
	dropped int
	// set once the participant is gone; the box then only serves one Drain
	released time.Time
}

func (b *box) open() bool { return b.released.IsZero() }

// Mailboxes holds one bounded box per open participant. When a box is full
// the oldest event is discarded.
type Mailboxes struct {
	size int
	log  *slog.Logger
	now  func() time.Time

	mu    sync.Mutex
	boxes map[domain.ParticipantID]*box
}

func New(size int, log *slog.Logger) *Mailboxes {
	if size <= 0 {
		size = DefaultSize
	}
	if log == nil {
		log = slog.Default()
	}
	return &Mailboxes{
		size:  size,
		log:   log.With("component", "mailbox"),
		now:   time.Now,
		boxes: make(map[domain.ParticipantID]*box),
	}
}

// Open creates an empty box for id. Opening an existing box keeps its events.
func (m *Mailboxes) Open(id domain.ParticipantID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.boxes[id]; !ok || !b.open() {
		m.boxes[id] = &box{}
	}
}

// Deliver implements matchmaker.Notifier. Events for ids without an open
// box are ignored.
func (m *Mailboxes) Deliver(_ context.Context, id domain.ParticipantID, ev domain.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.boxes[id]
	if !ok || !b.open() {
		return
	}
	if len(b.events) >= m.size {
		b.events = b.events[1:]
		b.dropped++
		if b.dropped == 1 {
			m.log.Warn("mailbox full, dropping oldest events", "participant", id, "size", m.size)
		}
	}
	b.events = append(b.events, ev)
}

// Release implements matchmaker.Notifier. A box with an undelivered ban
// notice is kept for one more Drain, up to RetainReleased; any other box is
// deleted.
func (m *Mailboxes) Release(id domain.ParticipantID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pruneLocked()
	b, ok := m.boxes[id]
	if !ok || !b.open() {
		return
	}
	banned := lo.ContainsBy(b.events, func(ev domain.Event) bool {
		return ev.Type == domain.EventBanned
	})
	if !banned {
		delete(m.boxes, id)
		return
	}
	b.released = m.now()
}

// Drain returns and clears pending events, oldest first. ok is false when
// id has no box. Draining a released box removes it.
func (m *Mailboxes) Drain(id domain.ParticipantID) (events []domain.Event, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.boxes[id]
	if !ok {
		return nil, false
	}
	events = b.events
	b.events = nil
	b.dropped = 0
	if !b.open() {
		delete(m.boxes, id)
	}
	return events, true
}

// Len counts open boxes.
func (m *Mailboxes) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return lo.CountBy(lo.Values(m.boxes), func(b *box) bool { return b.open() })
}

func (m *Mailboxes) pruneLocked() {
	now := m.now()
	for id, b := range m.boxes {
		if !b.open() && now.Sub(b.released) > RetainReleased {
			delete(m.boxes, id)
		}
	}
}
