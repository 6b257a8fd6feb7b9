package matchmaker

import (
	"time"

	"github.com/cwrk-planet/rendezvous/internal/domain"
)

// participant is the engine-owned record. ticket is non-zero while the
// participant holds a live queue entry.
type participant struct {
	domain.Participant
	ticket uint64
}

func (p *participant) queued() bool { return p.ticket != 0 }

// unlink clears pairing fields and leaves p waiting, not queued.
func (p *participant) unlink() {
	p.State = domain.StateWaiting
	p.PartnerID = ""
	p.SessionToken = ""
	p.Role = domain.RoleNone
}

// registry is not safe for concurrent use; the Matchmaker lock guards it.
type registry struct {
	byID map[domain.ParticipantID]*participant
}

func newRegistry() *registry {
	return &registry{byID: make(map[domain.ParticipantID]*participant)}
}

func (r *registry) create(id domain.ParticipantID, name, origin string, transport domain.Transport, now time.Time) *participant {
	if id == "" {
		id = domain.NewParticipantID()
	}
	p := &participant{Participant: domain.Participant{
		ID:          id,
		DisplayName: name,
		State:       domain.StateWaiting,
		Origin:      origin,
		Transport:   transport,
		JoinedAt:    now,
		LastSeen:    now,
	}}
	r.byID[id] = p
	return p
}

func (r *registry) get(id domain.ParticipantID) (*participant, bool) {
	p, ok := r.byID[id]
	return p, ok
}

func (r *registry) remove(id domain.ParticipantID) {
	delete(r.byID, id)
}

func (r *registry) touch(id domain.ParticipantID, now time.Time) bool {
	p, ok := r.byID[id]
	if !ok {
		return false
	}
	p.LastSeen = now
	return true
}

func (r *registry) len() int { return len(r.byID) }
