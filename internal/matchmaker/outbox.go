package matchmaker

import (
	"sync"

	"github.com/cwrk-planet/rendezvous/internal/audit"
	"github.com/cwrk-planet/rendezvous/internal/domain"
)

type delivery struct {
	to domain.ParticipantID
	ev domain.Event
}

// outbox collects side effects produced under the engine lock.
type outbox struct {
	deliveries []delivery
	released   []domain.ParticipantID
	records    []audit.Record
}

func (o *outbox) deliver(to domain.ParticipantID, ev domain.Event) {
	o.deliveries = append(o.deliveries, delivery{to: to, ev: ev})
}

func (o *outbox) release(id domain.ParticipantID) {
	o.released = append(o.released, id)
}

func (o *outbox) record(rec audit.Record) {
	o.records = append(o.records, rec)
}

// sequencer runs outbox flushes in the order their tickets were taken.
// Tickets are taken under the engine lock, so flush order matches commit
// order and each participant sees its events in the order they happened.
type sequencer struct {
	mu   sync.Mutex
	cond *sync.Cond
	next uint64
	done uint64
}

func newSequencer() *sequencer {
	s := &sequencer{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// ticket must be called with the engine lock held. Every ticket must be
// passed to run exactly once.
func (s *sequencer) ticket() uint64 {
	s.mu.Lock()
	t := s.next
	s.next++
	s.mu.Unlock()
	return t
}

func (s *sequencer) run(t uint64, fn func()) {
	s.mu.Lock()
	for s.done != t {
		s.cond.Wait()
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.done++
		s.cond.Broadcast()
		s.mu.Unlock()
	}()
	fn()
}
