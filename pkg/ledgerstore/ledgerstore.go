// Package ledgerstore provides an optional durable mirror of a kernel's
// in-memory audit ledger (spec §4.7). The in-memory ledger remains the
// source of truth during a kernel's lifetime; a Store is a write-behind
// copy so entries survive a process restart. Appends are driver-agnostic
// behind the database/sql interface — SQLiteStore and PostgresStore only
// differ in schema DDL and placeholder style.
package ledgerstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mindburn-labs/kernels/pkg/ledger"
)

// Store durably persists AuditEntry rows for one kernel and can replay
// them back in append order.
type Store interface {
	Init(ctx context.Context) error
	Append(ctx context.Context, kernelID string, e ledger.AuditEntry) error
	Load(ctx context.Context, kernelID string) ([]ledger.AuditEntry, error)
}

// SQLiteStore persists entries to a modernc.org/sqlite-backed database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an already-open *sql.DB (driver "sqlite").
func NewSQLiteStore(db *sql.DB) *SQLiteStore { return &SQLiteStore{db: db} }

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS ledger_entries (
	kernel_id     TEXT NOT NULL,
	seq           INTEGER NOT NULL,
	prev_hash     TEXT NOT NULL,
	entry_hash    TEXT NOT NULL,
	ts_ms         INTEGER NOT NULL,
	request_id    TEXT NOT NULL,
	actor         TEXT NOT NULL,
	intent        TEXT NOT NULL,
	decision      TEXT NOT NULL,
	state_from    TEXT NOT NULL,
	state_to      TEXT NOT NULL,
	tool_name     TEXT,
	params_hash   TEXT,
	evidence_hash TEXT,
	error         TEXT,
	PRIMARY KEY (kernel_id, seq)
);
`

func (s *SQLiteStore) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteSchema)
	return err
}

func (s *SQLiteStore) Append(ctx context.Context, kernelID string, e ledger.AuditEntry) error {
	var seq int64
	row := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(seq), -1) + 1 FROM ledger_entries WHERE kernel_id = ?", kernelID)
	if err := row.Scan(&seq); err != nil {
		return fmt.Errorf("ledgerstore: next seq: %w", err)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ledger_entries
		(kernel_id, seq, prev_hash, entry_hash, ts_ms, request_id, actor, intent, decision, state_from, state_to, tool_name, params_hash, evidence_hash, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, kernelID, seq, e.PrevHash, e.EntryHash, e.TsMS, e.RequestID, e.Actor, e.Intent, e.Decision, e.StateFrom, e.StateTo,
		nullIfEmpty(e.ToolName), nullIfEmpty(e.ParamsHash), nullIfEmpty(e.EvidenceHash), nullIfEmpty(e.Error))
	if err != nil {
		return fmt.Errorf("ledgerstore: insert entry: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, kernelID string) ([]ledger.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT prev_hash, entry_hash, ts_ms, request_id, actor, intent, decision, state_from, state_to, tool_name, params_hash, evidence_hash, error
		FROM ledger_entries WHERE kernel_id = ? ORDER BY seq ASC
	`, kernelID)
	if err != nil {
		return nil, fmt.Errorf("ledgerstore: load: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanEntries(rows)
}

// PostgresStore persists entries to a lib/pq-backed Postgres database.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an already-open *sql.DB (driver "postgres").
func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

const pgSchema = `
CREATE TABLE IF NOT EXISTS ledger_entries (
	kernel_id     TEXT NOT NULL,
	seq           BIGINT NOT NULL,
	prev_hash     TEXT NOT NULL,
	entry_hash    TEXT NOT NULL,
	ts_ms         BIGINT NOT NULL,
	request_id    TEXT NOT NULL,
	actor         TEXT NOT NULL,
	intent        TEXT NOT NULL,
	decision      TEXT NOT NULL,
	state_from    TEXT NOT NULL,
	state_to      TEXT NOT NULL,
	tool_name     TEXT,
	params_hash   TEXT,
	evidence_hash TEXT,
	error         TEXT,
	PRIMARY KEY (kernel_id, seq)
);
`

func (s *PostgresStore) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, pgSchema)
	return err
}

func (s *PostgresStore) Append(ctx context.Context, kernelID string, e ledger.AuditEntry) error {
	var seq int64
	row := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(seq), -1) + 1 FROM ledger_entries WHERE kernel_id = $1", kernelID)
	if err := row.Scan(&seq); err != nil {
		return fmt.Errorf("ledgerstore: next seq: %w", err)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ledger_entries
		(kernel_id, seq, prev_hash, entry_hash, ts_ms, request_id, actor, intent, decision, state_from, state_to, tool_name, params_hash, evidence_hash, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, kernelID, seq, e.PrevHash, e.EntryHash, e.TsMS, e.RequestID, e.Actor, e.Intent, e.Decision, e.StateFrom, e.StateTo,
		nullIfEmpty(e.ToolName), nullIfEmpty(e.ParamsHash), nullIfEmpty(e.EvidenceHash), nullIfEmpty(e.Error))
	if err != nil {
		return fmt.Errorf("ledgerstore: insert entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, kernelID string) ([]ledger.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT prev_hash, entry_hash, ts_ms, request_id, actor, intent, decision, state_from, state_to, tool_name, params_hash, evidence_hash, error
		FROM ledger_entries WHERE kernel_id = $1 ORDER BY seq ASC
	`, kernelID)
	if err != nil {
		return nil, fmt.Errorf("ledgerstore: load: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanEntries(rows)
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func scanEntries(rows *sql.Rows) ([]ledger.AuditEntry, error) {
	var out []ledger.AuditEntry
	for rows.Next() {
		var e ledger.AuditEntry
		var toolName, paramsHash, evidenceHash, errField sql.NullString
		if err := rows.Scan(&e.PrevHash, &e.EntryHash, &e.TsMS, &e.RequestID, &e.Actor, &e.Intent, &e.Decision,
			&e.StateFrom, &e.StateTo, &toolName, &paramsHash, &evidenceHash, &errField); err != nil {
			return nil, fmt.Errorf("ledgerstore: scan row: %w", err)
		}
		e.ToolName = toolName.String
		e.ParamsHash = paramsHash.String
		e.EvidenceHash = evidenceHash.String
		e.Error = errField.String
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledgerstore: rows: %w", err)
	}
	return out, nil
}
