package postgres

const (
	queryCreateAuditTable = `
CREATE TABLE IF NOT EXISTS rendezvous_audit (
	id             BIGSERIAL PRIMARY KEY,
	kind           TEXT        NOT NULL,
	at             TIMESTAMPTZ NOT NULL,
	participant_id TEXT        NOT NULL,
	partner_id     TEXT,
	session_token  TEXT,
	origin         TEXT,
	reason         TEXT
)`

	queryCreateAuditIndex = `
CREATE INDEX IF NOT EXISTS rendezvous_audit_at_idx ON rendezvous_audit (at)`

	queryInsertAudit = `
INSERT INTO rendezvous_audit (kind, at, participant_id, partner_id, session_token, origin, reason)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
)
