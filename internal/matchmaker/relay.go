package matchmaker

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/cwrk-planet/rendezvous/internal/domain"
)

// ErrEmptyMessage is returned for chat text that is blank after trimming.
// Transports drop such messages silently.
var ErrEmptyMessage = fmt.Errorf("%w: empty message", domain.ErrInvalidPayload)

// Relay forwards payload from sender to its current partner. A sender
// without a partner gets ErrNotPaired and nothing changes. Chat text from a
// paired sender is checked against the content policy; a violation bans
// the sender's origin and nothing is forwarded.
func (m *Matchmaker) Relay(ctx context.Context, from domain.ParticipantID, payload domain.Payload) error {
	payload, err := m.validate(payload)
	if err != nil {
		return err
	}

	var (
		flagged bool
		reason  string
	)
	if payload.Kind == domain.PayloadChat && m.policy != nil {
		flagged, reason = m.policy.Check(payload.Text)
	}

	ob, t := m.begin()
	defer m.commit(ctx, ob, t)
	defer m.mu.Unlock()

	p, ok := m.reg.get(from)
	if !ok {
		return domain.ErrNotFound
	}
	if !p.Paired() {
		m.log.Debug("relay from unpaired participant dropped", "participant", from, "kind", payload.Kind)
		return domain.ErrNotPaired
	}
	p.LastSeen = m.now()

	if flagged {
		if reason == "" {
			reason = "content policy"
		}
		m.banLocked(ob, p, reason)
		return domain.ErrPolicyViolation
	}

	partner, ok := m.reg.get(p.PartnerID)
	assertf(ok, "paired participant %s points at missing partner %s", p.ID, p.PartnerID)

	ob.deliver(partner.ID, domain.RelayEvent(payload))
	return nil
}

func (m *Matchmaker) validate(payload domain.Payload) (domain.Payload, error) {
	switch {
	case payload.Kind.Signaling():
		return domain.SignalPayload(payload.Kind, payload.Data), nil
	case payload.Kind == domain.PayloadChat:
		text := strings.TrimSpace(payload.Text)
		if text == "" {
			return payload, ErrEmptyMessage
		}
		if utf8.RuneCountInString(text) > m.cfg.MaxChatLength {
			return payload, fmt.Errorf("%w: message longer than %d characters", domain.ErrInvalidPayload, m.cfg.MaxChatLength)
		}
		return domain.ChatPayload(text), nil
	}
	return payload, fmt.Errorf("%w: unknown kind %q", domain.ErrInvalidPayload, payload.Kind)
}
