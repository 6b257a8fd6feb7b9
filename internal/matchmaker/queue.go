package matchmaker

import (
	"github.com/samber/lo"

	"github.com/cwrk-planet/rendezvous/internal/domain"
)

type entry struct {
	id     domain.ParticipantID
	ticket uint64
}

// queue is a FIFO of wait tickets. Removal is lazy: a participant leaves
// the queue by dropping its ticket, and the stale entry is discarded when
// it reaches the head or during compaction.
type queue struct {
	items      []entry
	head       int
	nextTicket uint64
}

func newQueue() *queue {
	return &queue{items: make([]entry, 0, 64)}
}

// push appends id and returns its ticket.
func (q *queue) push(id domain.ParticipantID) uint64 {
	q.nextTicket++
	q.items = append(q.items, entry{id: id, ticket: q.nextTicket})
	return q.nextTicket
}

// pushFront restores an entry popped during a match attempt.
func (q *queue) pushFront(e entry) {
	if q.head > 0 {
		q.head--
		q.items[q.head] = e
		return
	}
	q.items = append([]entry{e}, q.items...)
}

func (q *queue) pop() (entry, bool) {
	if q.head >= len(q.items) {
		q.reset()
		return entry{}, false
	}
	e := q.items[q.head]
	q.items[q.head] = entry{}
	q.head++
	if q.head > 32 && q.head*2 >= len(q.items) {
		q.items = append(q.items[:0], q.items[q.head:]...)
		q.head = 0
	}
	return e, true
}

func (q *queue) reset() {
	q.items = q.items[:0]
	q.head = 0
}

// len counts entries including stale ones.
func (q *queue) len() int { return len(q.items) - q.head }

func (q *queue) compact(live func(entry) bool) {
	q.items = lo.Filter(q.items[q.head:], func(e entry, _ int) bool { return live(e) })
	q.head = 0
}

func (q *queue) entries() []entry {
	return q.items[q.head:]
}
