package domain

import (
	"strings"
	"time"
)

const DefaultDisplayName = "Stranger"

type State string

const (
	StateWaiting State = "waiting"
	StatePaired  State = "paired"
	StateGone    State = "gone"
)

type Role string

const (
	RoleNone      Role = ""
	RoleInitiator Role = "initiator"
	RoleResponder Role = "responder"
)

// Transport tells the liveness monitor whether the participant owes heartbeats.
type Transport string

const (
	TransportPull Transport = "pull"
	TransportPush Transport = "push"
)

type Participant struct {
	ID           ParticipantID
	DisplayName  string
	State        State
	PartnerID    ParticipantID
	SessionToken SessionToken
	Role         Role
	Origin       string
	Transport    Transport
	JoinedAt     time.Time
	LastSeen     time.Time
}

func (p Participant) Paired() bool { return p.State == StatePaired }

// NormalizeDisplayName trims name and substitutes DefaultDisplayName when blank.
func NormalizeDisplayName(name string, maxLen int) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultDisplayName
	}
	if maxLen > 0 {
		if r := []rune(name); len(r) > maxLen {
			name = string(r[:maxLen])
		}
	}
	return name
}

// Status is what a poller sees about itself.
type Status struct {
	State        State
	Queued       bool
	PartnerName  string
	SessionToken SessionToken
	Role         Role
}

type Stats struct {
	Participants int
	Waiting      int
	Queued       int
	Paired       int
	Bans         int
	Matches      uint64
	Evictions    uint64
}
