package audit

import (
	"context"
	"log/slog"
)

// SlogRepository writes records to the log; used when no database is configured.
type SlogRepository struct {
	log *slog.Logger
}

func NewSlogRepository(log *slog.Logger) *SlogRepository {
	if log == nil {
		log = slog.Default()
	}
	return &SlogRepository{log: log.With("component", "audit")}
}

func (r *SlogRepository) Insert(ctx context.Context, rec Record) error {
	r.log.InfoContext(ctx, "audit",
		"kind", rec.Kind,
		"at", rec.At,
		"participant", rec.ParticipantID,
		"partner", rec.PartnerID,
		"session", rec.SessionToken,
		"origin", rec.Origin,
		"reason", rec.Reason)
	return nil
}
