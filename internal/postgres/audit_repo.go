package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cwrk-planet/rendezvous/internal/audit"
)

// execer is the part of pgxpool.Pool the repository needs.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// AuditRepository appends audit records. It never reads them back.
type AuditRepository struct {
	db execer
}

func NewAuditRepository(db *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{db: db}
}

// EnsureSchema creates the audit table when it does not exist yet.
func (r *AuditRepository) EnsureSchema(ctx context.Context) error {
	for _, q := range []string{queryCreateAuditTable, queryCreateAuditIndex} {
		if _, err := r.db.Exec(ctx, q); err != nil {
			return fmt.Errorf("ensure audit schema: %w", err)
		}
	}
	return nil
}

func (r *AuditRepository) Insert(ctx context.Context, rec audit.Record) error {
	_, err := r.db.Exec(ctx, queryInsertAudit,
		string(rec.Kind),
		rec.At,
		rec.ParticipantID.String(),
		nullable(rec.PartnerID.String()),
		nullable(rec.SessionToken.String()),
		nullable(rec.Origin),
		nullable(rec.Reason),
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
