package matchmaker

import (
	"context"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/cwrk-planet/rendezvous/internal/audit"
	"github.com/cwrk-planet/rendezvous/internal/domain"
)

// Ban is an entry of the in-memory ban set.
type Ban struct {
	Origin string
	Reason string
	At     time.Time
}

// Ban adds origin to the ban set and tears the participant down. The
// participant's channel gets a banned event before it is released. An
// unknown id still bans the origin.
func (m *Matchmaker) Ban(ctx context.Context, id domain.ParticipantID, origin, reason string) error {
	ob, t := m.begin()
	defer m.commit(ctx, ob, t)
	defer m.mu.Unlock()

	p, ok := m.reg.get(id)
	if !ok {
		if origin == "" {
			return domain.ErrNotFound
		}
		m.addBanLocked(ob, origin, reason, id)
		return nil
	}
	if origin != "" {
		p.Origin = origin
	}
	m.banLocked(ob, p, reason)
	return nil
}

// SelfReport bans the caller's own origin. Clients run a local classifier
// and ask for this when it fires.
func (m *Matchmaker) SelfReport(ctx context.Context, id domain.ParticipantID, reason string) error {
	if reason == "" {
		reason = "self report"
	}
	ob, t := m.begin()
	defer m.commit(ctx, ob, t)
	defer m.mu.Unlock()

	p, ok := m.reg.get(id)
	if !ok {
		return domain.ErrNotFound
	}
	m.banLocked(ob, p, reason)
	return nil
}

// Report records a complaint about the caller's partner. No action is taken.
func (m *Matchmaker) Report(ctx context.Context, id domain.ParticipantID, reason string) error {
	ob, t := m.begin()
	defer m.commit(ctx, ob, t)
	defer m.mu.Unlock()

	p, ok := m.reg.get(id)
	if !ok {
		return domain.ErrNotFound
	}
	p.LastSeen = m.now()

	rec := audit.Record{
		Kind:          audit.KindReport,
		At:            m.now(),
		ParticipantID: p.ID,
		Reason:        reason,
	}
	if p.Paired() {
		rec.PartnerID = p.PartnerID
		rec.SessionToken = p.SessionToken
		if partner, ok := m.reg.get(p.PartnerID); ok {
			rec.Origin = partner.Origin
		}
	}
	ob.record(rec)
	m.log.Warn("participant reported", "reporter", p.ID, "reported", rec.PartnerID, "reason", reason)
	return nil
}

func (m *Matchmaker) IsBanned(origin string) bool {
	if origin == "" {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.bans[origin]
	return ok
}

// Unban reports whether origin was banned.
func (m *Matchmaker) Unban(origin string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bans[origin]; !ok {
		return false
	}
	delete(m.bans, origin)
	m.log.Info("origin unbanned", "origin", origin)
	return true
}

// Bans lists the ban set, oldest first.
func (m *Matchmaker) Bans() []Ban {
	m.mu.Lock()
	out := lo.Values(m.bans)
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].At.Equal(out[j].At) {
			return out[i].Origin < out[j].Origin
		}
		return out[i].At.Before(out[j].At)
	})
	return out
}

func (m *Matchmaker) banLocked(ob *outbox, p *participant, reason string) {
	if p.Origin != "" {
		m.addBanLocked(ob, p.Origin, reason, p.ID)
	}
	ob.deliver(p.ID, domain.BannedEvent(reason))
	m.teardownLocked(ob, p.ID, audit.KindDisconnect, "banned: "+reason)
}

func (m *Matchmaker) addBanLocked(ob *outbox, origin, reason string, id domain.ParticipantID) {
	now := m.now()
	m.bans[origin] = Ban{Origin: origin, Reason: reason, At: now}
	ob.record(audit.Record{
		Kind:          audit.KindBan,
		At:            now,
		ParticipantID: id,
		Origin:        origin,
		Reason:        reason,
	})
	m.log.Warn("origin banned", "origin", origin, "participant", id, "reason", reason)
}
