// Package audit keeps a write-only trail of pairing and moderation
// decisions. Records are never read back into the matchmaker.
package audit

import (
	"context"
	"time"

	"github.com/cwrk-planet/rendezvous/internal/domain"
)

type Kind string

const (
	KindMatch      Kind = "match"
	KindDisconnect Kind = "disconnect"
	KindEviction   Kind = "eviction"
	KindBan        Kind = "ban"
	KindReport     Kind = "report"
)

type Record struct {
	Kind          Kind
	At            time.Time
	ParticipantID domain.ParticipantID
	PartnerID     domain.ParticipantID
	SessionToken  domain.SessionToken
	Origin        string
	Reason        string
}

//go:generate mockgen -source=record.go -destination=mock_repository_test.go -package=audit
type Repository interface {
	Insert(ctx context.Context, rec Record) error
}
