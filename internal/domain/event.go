package domain

type EventType string

const (
	EventMatchFound          EventType = "match_found"
	EventPartnerDisconnected EventType = "partner_disconnected"
	EventRelay               EventType = "relay"
	EventBanned              EventType = "banned"
)

// FromPartner is the only sender tag a participant ever sees.
const FromPartner = "partner"

type MatchInfo struct {
	PartnerName  string
	SessionToken SessionToken
	Role         Role
}

// Event is an engine output addressed to a single participant.
type Event struct {
	Type    EventType
	Match   *MatchInfo
	Payload *Payload
	Reason  string
}

func MatchFoundEvent(m MatchInfo) Event {
	return Event{Type: EventMatchFound, Match: &m}
}

func PartnerDisconnectedEvent() Event {
	return Event{Type: EventPartnerDisconnected}
}

func RelayEvent(p Payload) Event {
	return Event{Type: EventRelay, Payload: &p}
}

func BannedEvent(reason string) Event {
	return Event{Type: EventBanned, Reason: reason}
}
