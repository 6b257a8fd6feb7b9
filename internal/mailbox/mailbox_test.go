package mailbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwrk-planet/rendezvous/internal/domain"
)

func TestMailboxes_DeliverAndDrain(t *testing.T) {
	m := New(4, nil)
	m.Open("a")

	m.Deliver(context.Background(), "a", domain.PartnerDisconnectedEvent())
	m.Deliver(context.Background(), "a", domain.RelayEvent(domain.ChatPayload("hi")))
	m.Deliver(context.Background(), "stranger", domain.PartnerDisconnectedEvent())

	events, ok := m.Drain("a")
	require.True(t, ok)
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventPartnerDisconnected, events[0].Type)
	assert.Equal(t, "hi", events[1].Payload.Text)

	events, ok = m.Drain("a")
	require.True(t, ok)
	assert.Empty(t, events)

	_, ok = m.Drain("stranger")
	assert.False(t, ok)
}

func TestMailboxes_DropsOldestWhenFull(t *testing.T) {
	m := New(3, nil)
	m.Open("a")
	for _, text := range []string{"1", "2", "3", "4", "5"} {
		m.Deliver(context.Background(), "a", domain.RelayEvent(domain.ChatPayload(text)))
	}

	events, ok := m.Drain("a")
	require.True(t, ok)
	require.Len(t, events, 3)
	assert.Equal(t, "3", events[0].Payload.Text)
	assert.Equal(t, "5", events[2].Payload.Text)
}

func TestMailboxes_ReleaseAndReopen(t *testing.T) {
	m := New(0, nil)
	m.Open("a")
	m.Deliver(context.Background(), "a", domain.BannedEvent("x"))
	m.Open("a")
	assert.Equal(t, 1, m.Len())

	events, _ := m.Drain("a")
	require.Len(t, events, 1, "reopening keeps pending events")

	m.Release("a")
	m.Release("a")
	assert.Zero(t, m.Len())
	m.Deliver(context.Background(), "a", domain.BannedEvent("x"))
	_, ok := m.Drain("a")
	assert.False(t, ok)
}

func TestMailboxes_BanNoticeSurvivesRelease(t *testing.T) {
	m := New(4, nil)
	m.Open("a")
	m.Deliver(context.Background(), "a", domain.MatchFoundEvent(domain.MatchInfo{PartnerName: "Bob", Role: domain.RoleInitiator}))
	m.Deliver(context.Background(), "a", domain.BannedEvent("profanity"))
	m.Release("a")

	assert.Zero(t, m.Len())
	m.Deliver(context.Background(), "a", domain.PartnerDisconnectedEvent())

	events, ok := m.Drain("a")
	require.True(t, ok)
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventBanned, events[1].Type)
	assert.Equal(t, "profanity", events[1].Reason)

	_, ok = m.Drain("a")
	assert.False(t, ok, "released box serves a single drain")
}

func TestMailboxes_UndrainedBanNoticeExpires(t *testing.T) {
	now := time.Unix(0, 0)
	m := New(4, nil)
	m.now = func() time.Time { return now }

	m.Open("a")
	m.Deliver(context.Background(), "a", domain.BannedEvent("x"))
	m.Release("a")

	now = now.Add(RetainReleased + time.Second)
	m.Release("other")

	_, ok := m.Drain("a")
	assert.False(t, ok)
}

func TestMailboxes_LeaveDropsPendingEvents(t *testing.T) {
	m := New(4, nil)
	m.Open("a")
	m.Deliver(context.Background(), "a", domain.PartnerDisconnectedEvent())
	m.Release("a")

	_, ok := m.Drain("a")
	assert.False(t, ok)
}
