package matchmaker

import (
	"context"
	"time"

	"github.com/samber/lo"

	"github.com/cwrk-planet/rendezvous/internal/audit"
	"github.com/cwrk-planet/rendezvous/internal/domain"
)

// Start launches the liveness monitor. It is stopped by Stop or by
// cancelling ctx. Calling Start twice is a no-op.
func (m *Matchmaker) Start(ctx context.Context) {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if m.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.stopped = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(m.cfg.SweepInterval)
		defer ticker.Stop()

		m.log.Info("liveness monitor started", "interval", m.cfg.SweepInterval, "timeout", m.cfg.Timeout)
		for {
			select {
			case <-ctx.Done():
				m.log.Info("liveness monitor stopped")
				return
			case <-ticker.C:
				if n := m.Sweep(ctx); n > 0 {
					m.log.Info("stale participants evicted", "count", n)
				}
			}
		}
	}(m.stopped)
}

// Stop halts the monitor and waits for an in-flight sweep to finish.
func (m *Matchmaker) Stop() {
	m.runMu.Lock()
	cancel, stopped := m.cancel, m.stopped
	m.cancel, m.stopped = nil, nil
	m.runMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-stopped
}

// Sweep evicts pull participants whose last heartbeat is older than the
// timeout and returns how many were removed.
func (m *Matchmaker) Sweep(ctx context.Context) int {
	ob, t := m.begin()
	defer m.commit(ctx, ob, t)
	defer m.mu.Unlock()

	now := m.now()
	stale := lo.FilterMap(lo.Values(m.reg.byID), func(p *participant, _ int) (domain.ParticipantID, bool) {
		return p.ID, p.Transport == domain.TransportPull && now.Sub(p.LastSeen) > m.cfg.Timeout
	})

	evicted := 0
	for _, id := range stale {
		if m.teardownLocked(ob, id, audit.KindEviction, "heartbeat timeout") {
			evicted++
		}
	}
	m.evictions += uint64(evicted)
	return evicted
}
