// Package matchmaker pairs waiting participants two at a time and relays
// signaling and chat between partners.
//
// All registry, queue and ban state is guarded by one mutex. Operations
// collect their outbound events while holding it and hand them to the
// Notifier after unlocking, in commit order.
package matchmaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cwrk-planet/rendezvous/internal/audit"
	"github.com/cwrk-planet/rendezvous/internal/domain"
)

// Notifier carries engine events to whichever transport owns the
// participant. Implementations must not block and must not call back into
// the Matchmaker from Deliver or Release.
type Notifier interface {
	Deliver(ctx context.Context, id domain.ParticipantID, ev domain.Event)
	// Release is called once a participant has been removed from the registry.
	Release(id domain.ParticipantID)
}

// ContentPolicy decides whether chat text is allowed through. A flagged
// message gets its sender banned with the returned reason.
type ContentPolicy interface {
	Check(text string) (flagged bool, reason string)
}

type PolicyFunc func(text string) (bool, string)

func (f PolicyFunc) Check(text string) (bool, string) { return f(text) }

type Recorder interface {
	Submit(rec audit.Record) bool
}

type Config struct {
	SweepInterval time.Duration
	Timeout       time.Duration
	MaxChatLength int
	MaxNameLength int
}

func DefaultConfig() Config {
	return Config{
		SweepInterval: 5 * time.Second,
		Timeout:       10 * time.Second,
		MaxChatLength: 4000,
		MaxNameLength: 64,
	}
}

type JoinRequest struct {
	// ID is optional; push transports reuse their connection id.
	ID          domain.ParticipantID
	DisplayName string
	Origin      string
	Transport   domain.Transport
}

type Option func(*Matchmaker)

func WithClock(now func() time.Time) Option {
	return func(m *Matchmaker) { m.now = now }
}

func WithPolicy(p ContentPolicy) Option {
	return func(m *Matchmaker) { m.policy = p }
}

func WithRecorder(r Recorder) Option {
	return func(m *Matchmaker) { m.recorder = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Matchmaker) { m.log = l }
}

type Matchmaker struct {
	cfg      Config
	notifier Notifier
	policy   ContentPolicy
	recorder Recorder
	now      func() time.Time
	log      *slog.Logger

	mu        sync.Mutex
	reg       *registry
	queue     *queue
	bans      map[string]Ban
	matches   uint64
	evictions uint64

	seq *sequencer

	runMu   sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
}

func New(cfg Config, notifier Notifier, opts ...Option) *Matchmaker {
	def := DefaultConfig()
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = def.SweepInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxChatLength <= 0 {
		cfg.MaxChatLength = def.MaxChatLength
	}
	if cfg.MaxNameLength <= 0 {
		cfg.MaxNameLength = def.MaxNameLength
	}

	m := &Matchmaker{
		cfg:      cfg,
		notifier: notifier,
		now:      time.Now,
		log:      slog.Default(),
		reg:      newRegistry(),
		queue:    newQueue(),
		bans:     make(map[string]Ban),
		seq:      newSequencer(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With("component", "matchmaker")
	return m
}

// Enqueue registers a participant (or re-queues a known idle one) and
// pairs as many waiting participants as possible.
func (m *Matchmaker) Enqueue(ctx context.Context, req JoinRequest) (domain.ParticipantID, error) {
	ob, t := m.begin()
	defer m.commit(ctx, ob, t)
	defer m.mu.Unlock()

	if req.Origin != "" {
		if _, banned := m.bans[req.Origin]; banned {
			return "", domain.ErrBanned
		}
	}
	if req.Transport == "" {
		req.Transport = domain.TransportPull
	}

	name := domain.NormalizeDisplayName(req.DisplayName, m.cfg.MaxNameLength)
	now := m.now()

	if p, ok := m.reg.get(req.ID); ok {
		p.LastSeen = now
		if req.DisplayName != "" {
			p.DisplayName = name
		}
		err := m.requeueLocked(p)
		m.tryMatchLocked(ob)
		if err != nil && !errors.Is(err, domain.ErrAlreadyQueued) {
			return "", err
		}
		return p.ID, nil
	}

	p := m.reg.create(req.ID, name, req.Origin, req.Transport, now)
	p.ticket = m.queue.push(p.ID)
	m.log.Info("participant joined", "participant", p.ID, "name", p.DisplayName, "transport", p.Transport)

	m.tryMatchLocked(ob)
	return p.ID, nil
}

// Requeue puts an idle waiting participant at the back of the queue.
// Queued or paired participants are left alone.
func (m *Matchmaker) Requeue(ctx context.Context, id domain.ParticipantID) error {
	ob, t := m.begin()
	defer m.commit(ctx, ob, t)
	defer m.mu.Unlock()

	p, ok := m.reg.get(id)
	if !ok {
		return domain.ErrNotFound
	}
	p.LastSeen = m.now()
	if err := m.requeueLocked(p); err != nil && err != domain.ErrAlreadyQueued {
		return err
	}
	m.tryMatchLocked(ob)
	return nil
}

// Next ends the current pairing, if any, and puts the caller back in the
// queue. The former partner is left idle and told its partner left. A
// non-blank name replaces the display name.
func (m *Matchmaker) Next(ctx context.Context, id domain.ParticipantID, name string) error {
	ob, t := m.begin()
	defer m.commit(ctx, ob, t)
	defer m.mu.Unlock()

	p, ok := m.reg.get(id)
	if !ok {
		return domain.ErrNotFound
	}
	p.LastSeen = m.now()
	if name != "" {
		p.DisplayName = domain.NormalizeDisplayName(name, m.cfg.MaxNameLength)
	}
	if p.Paired() {
		m.unlinkLocked(ob, p, audit.KindDisconnect, "next")
	}
	if err := m.requeueLocked(p); err != nil && err != domain.ErrAlreadyQueued {
		return err
	}
	m.tryMatchLocked(ob)
	return nil
}

// Disconnect tears the participant down. A second call, or a call for an
// unknown id, changes nothing and reports ErrNotFound.
func (m *Matchmaker) Disconnect(ctx context.Context, id domain.ParticipantID) error {
	ob, t := m.begin()
	defer m.commit(ctx, ob, t)
	defer m.mu.Unlock()

	if !m.teardownLocked(ob, id, audit.KindDisconnect, "leave") {
		return domain.ErrNotFound
	}
	return nil
}

// Touch refreshes the heartbeat without reading status.
func (m *Matchmaker) Touch(id domain.ParticipantID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.reg.touch(id, m.now()) {
		return domain.ErrNotFound
	}
	return nil
}

// PollStatus reports the caller's pairing state and counts as a heartbeat.
func (m *Matchmaker) PollStatus(id domain.ParticipantID) (domain.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.reg.get(id)
	if !ok {
		return domain.Status{}, domain.ErrNotFound
	}
	p.LastSeen = m.now()

	st := domain.Status{State: p.State, Queued: p.queued()}
	if p.Paired() {
		partner, ok := m.reg.get(p.PartnerID)
		assertf(ok, "paired participant %s points at missing partner %s", p.ID, p.PartnerID)
		st.PartnerName = partner.DisplayName
		st.SessionToken = p.SessionToken
		st.Role = p.Role
	}
	return st, nil
}

// Get returns a copy of the participant record.
func (m *Matchmaker) Get(id domain.ParticipantID) (domain.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.reg.get(id)
	if !ok {
		return domain.Participant{}, domain.ErrNotFound
	}
	return p.Participant, nil
}

func (m *Matchmaker) Stats() domain.Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := domain.Stats{
		Participants: m.reg.len(),
		Bans:         len(m.bans),
		Matches:      m.matches,
		Evictions:    m.evictions,
	}
	for _, p := range m.reg.byID {
		switch p.State {
		case domain.StateWaiting:
			st.Waiting++
			if p.queued() {
				st.Queued++
			}
		case domain.StatePaired:
			st.Paired++
		}
	}
	return st
}

// requeueLocked gives a waiting participant a fresh ticket at the back.
func (m *Matchmaker) requeueLocked(p *participant) error {
	switch {
	case p.Paired():
		return nil
	case p.queued():
		return domain.ErrAlreadyQueued
	}
	p.ticket = m.queue.push(p.ID)
	return nil
}

// live reports whether a queue entry still refers to a waiting participant
// holding that exact ticket.
func (m *Matchmaker) live(e entry) (*participant, bool) {
	p, ok := m.reg.get(e.id)
	if !ok || p.State != domain.StateWaiting || p.ticket != e.ticket {
		return nil, false
	}
	return p, true
}

// popLive pops entries until a live one turns up.
func (m *Matchmaker) popLive() (entry, *participant, bool) {
	for {
		e, ok := m.queue.pop()
		if !ok {
			return entry{}, nil, false
		}
		if p, ok := m.live(e); ok {
			return e, p, true
		}
	}
}

// tryMatchLocked pairs the two oldest live entries until fewer than two remain.
func (m *Matchmaker) tryMatchLocked(ob *outbox) {
	if m.queue.len() > 64 {
		m.queue.compact(func(e entry) bool {
			_, ok := m.live(e)
			return ok
		})
	}

	for {
		e1, first, ok := m.popLive()
		if !ok {
			return
		}
		_, second, ok := m.popLive()
		if !ok {
			m.queue.pushFront(e1)
			return
		}
		m.pairLocked(ob, first, second)
	}
}

func (m *Matchmaker) pairLocked(ob *outbox, initiator, responder *participant) {
	assertf(initiator.ID != responder.ID, "participant %s matched with itself", initiator.ID)

	token := domain.NewSessionToken()
	link := func(p, partner *participant, role domain.Role) {
		p.State = domain.StatePaired
		p.PartnerID = partner.ID
		p.SessionToken = token
		p.Role = role
		p.ticket = 0
	}
	link(initiator, responder, domain.RoleInitiator)
	link(responder, initiator, domain.RoleResponder)
	m.matches++

	ob.deliver(initiator.ID, domain.MatchFoundEvent(domain.MatchInfo{
		PartnerName:  responder.DisplayName,
		SessionToken: token,
		Role:         domain.RoleInitiator,
	}))
	ob.deliver(responder.ID, domain.MatchFoundEvent(domain.MatchInfo{
		PartnerName:  initiator.DisplayName,
		SessionToken: token,
		Role:         domain.RoleResponder,
	}))
	ob.record(audit.Record{
		Kind:          audit.KindMatch,
		At:            m.now(),
		ParticipantID: initiator.ID,
		PartnerID:     responder.ID,
		SessionToken:  token,
	})
	m.log.Info("participants matched",
		"initiator", initiator.ID,
		"responder", responder.ID,
		"session", token)
}

// unlinkLocked dissolves p's pairing; the partner is left waiting but not queued.
func (m *Matchmaker) unlinkLocked(ob *outbox, p *participant, kind audit.Kind, reason string) {
	partner, ok := m.reg.get(p.PartnerID)
	assertf(ok, "paired participant %s points at missing partner %s", p.ID, p.PartnerID)
	assertf(partner.PartnerID == p.ID, "asymmetric pairing %s -> %s -> %s", p.ID, partner.ID, partner.PartnerID)

	ob.record(audit.Record{
		Kind:          kind,
		At:            m.now(),
		ParticipantID: p.ID,
		PartnerID:     partner.ID,
		SessionToken:  p.SessionToken,
		Origin:        p.Origin,
		Reason:        reason,
	})
	partner.unlink()
	p.unlink()
	ob.deliver(partner.ID, domain.PartnerDisconnectedEvent())
}

// teardownLocked removes id and frees its partner. It reports false when id
// is not registered.
func (m *Matchmaker) teardownLocked(ob *outbox, id domain.ParticipantID, kind audit.Kind, reason string) bool {
	p, ok := m.reg.get(id)
	if !ok {
		return false
	}

	p.ticket = 0
	if p.Paired() {
		m.unlinkLocked(ob, p, kind, reason)
	} else {
		ob.record(audit.Record{
			Kind:          kind,
			At:            m.now(),
			ParticipantID: p.ID,
			Origin:        p.Origin,
			Reason:        reason,
		})
	}
	p.State = domain.StateGone
	m.reg.remove(id)
	ob.release(id)

	m.log.Info("participant removed", "participant", id, "reason", reason)
	return true
}

// begin locks the engine and reserves the dispatch slot for this operation.
// Callers defer commit and then defer m.mu.Unlock, so the lock is released
// first even when the operation panics.
func (m *Matchmaker) begin() (*outbox, uint64) {
	m.mu.Lock()
	return &outbox{}, m.seq.ticket()
}

func (m *Matchmaker) commit(ctx context.Context, ob *outbox, t uint64) {
	m.seq.run(t, func() { m.flush(ctx, ob) })
}

func (m *Matchmaker) flush(ctx context.Context, ob *outbox) {
	for _, d := range ob.deliveries {
		if m.notifier != nil {
			m.notifier.Deliver(ctx, d.to, d.ev)
		}
	}
	for _, id := range ob.released {
		if m.notifier != nil {
			m.notifier.Release(id)
		}
	}
	if m.recorder == nil {
		return
	}
	for _, rec := range ob.records {
		if !m.recorder.Submit(rec) {
			m.log.Warn("audit buffer full, record dropped", "kind", rec.Kind)
		}
	}
}

func assertf(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf("matchmaker invariant violated: "+format, args...))
	}
}
