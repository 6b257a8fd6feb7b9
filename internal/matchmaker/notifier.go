package matchmaker

import (
	"context"

	"github.com/cwrk-planet/rendezvous/internal/domain"
)

// FanOut forwards every event to each notifier. Transports ignore ids they
// do not own.
type FanOut []Notifier

func (f FanOut) Deliver(ctx context.Context, id domain.ParticipantID, ev domain.Event) {
	for _, n := range f {
		n.Deliver(ctx, id, ev)
	}
}

func (f FanOut) Release(id domain.ParticipantID) {
	for _, n := range f {
		n.Release(id)
	}
}

// NotifierFunc adapts a function to Notifier with a no-op Release.
type NotifierFunc func(ctx context.Context, id domain.ParticipantID, ev domain.Event)

func (f NotifierFunc) Deliver(ctx context.Context, id domain.ParticipantID, ev domain.Event) {
	f(ctx, id, ev)
}

func (f NotifierFunc) Release(domain.ParticipantID) {}
