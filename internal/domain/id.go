package domain

import "github.com/google/uuid"

type ParticipantID string

func NewParticipantID() ParticipantID {
	return ParticipantID(uuid.NewString())
}

func (id ParticipantID) String() string { return string(id) }

// SessionToken identifies one pairing; shared by both sides, never reused.
type SessionToken string

func NewSessionToken() SessionToken {
	return SessionToken(uuid.NewString())
}

func (t SessionToken) String() string { return string(t) }
