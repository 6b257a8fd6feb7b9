package matchmaker

import (
	"fmt"

	"github.com/cwrk-planet/rendezvous/internal/domain"
)

// CheckInvariants verifies queue and pairing consistency under the engine lock.
func (m *Matchmaker) CheckInvariants() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[domain.ParticipantID]bool)
	for _, e := range m.queue.entries() {
		p, ok := m.live(e)
		if !ok {
			continue
		}
		if seen[p.ID] {
			return fmt.Errorf("participant %s queued twice", p.ID)
		}
		seen[p.ID] = true
	}

	sessions := make(map[domain.SessionToken]int)
	for id, p := range m.reg.byID {
		if p.queued() && !seen[id] {
			return fmt.Errorf("participant %s holds ticket %d with no live entry", id, p.ticket)
		}
		if p.queued() && p.State != domain.StateWaiting {
			return fmt.Errorf("participant %s queued in state %s", id, p.State)
		}
		switch p.State {
		case domain.StatePaired:
			partner, ok := m.reg.get(p.PartnerID)
			if !ok {
				return fmt.Errorf("participant %s paired with missing %s", id, p.PartnerID)
			}
			if partner.PartnerID != id {
				return fmt.Errorf("asymmetric pairing %s -> %s -> %s", id, partner.ID, partner.PartnerID)
			}
			if partner.SessionToken != p.SessionToken {
				return fmt.Errorf("pair %s/%s has mismatched tokens", id, partner.ID)
			}
			if partner.Role == p.Role {
				return fmt.Errorf("pair %s/%s share role %s", id, partner.ID, p.Role)
			}
			sessions[p.SessionToken]++
		case domain.StateWaiting:
			if p.PartnerID != "" || p.SessionToken != "" {
				return fmt.Errorf("waiting participant %s keeps pairing fields", id)
			}
		default:
			return fmt.Errorf("participant %s registered in state %s", id, p.State)
		}
	}
	for token, n := range sessions {
		if n != 2 {
			return fmt.Errorf("session %s shared by %d participants", token, n)
		}
	}
	return nil
}

// QueueOrder returns the ids of live queue entries, oldest first.
func (m *Matchmaker) QueueOrder() []domain.ParticipantID {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.ParticipantID
	for _, e := range m.queue.entries() {
		if _, ok := m.live(e); ok {
			out = append(out, e.id)
		}
	}
	return out
}
