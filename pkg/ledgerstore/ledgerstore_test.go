package ledgerstore

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/mindburn-labs/kernels/pkg/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStoreInit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS ledger_entries").WillReturnResult(sqlmock.NewResult(0, 0))

	s := NewPostgresStore(db)
	require.NoError(t, s.Init(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreAppendAssignsNextSeq(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT COALESCE\\(MAX\\(seq\\), -1\\) \\+ 1").
		WithArgs("k1").
		WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(3))
	mock.ExpectExec("INSERT INTO ledger_entries").
		WithArgs("k1", int64(3), "prev", "hash", int64(1000), "r1", "a", "echo", "ALLOW", "IDLE", "IDLE", nil, nil, nil, nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	s := NewPostgresStore(db)
	err = s.Append(context.Background(), "k1", ledger.AuditEntry{
		PrevHash: "prev", EntryHash: "hash", TsMS: 1000, RequestID: "r1",
		Actor: "a", Intent: "echo", Decision: "ALLOW", StateFrom: "IDLE", StateTo: "IDLE",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreLoadScansOptionalFields(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{
		"prev_hash", "entry_hash", "ts_ms", "request_id", "actor", "intent", "decision",
		"state_from", "state_to", "tool_name", "params_hash", "evidence_hash", "error",
	}).
		AddRow("g", "h1", int64(1), "r1", "a", "i1", "ALLOW", "IDLE", "IDLE", nil, nil, nil, nil).
		AddRow("h1", "h2", int64(2), "r2", "a", "i2", "DENY", "IDLE", "IDLE", "echo", "ph", nil, nil)

	mock.ExpectQuery("SELECT prev_hash, entry_hash").WithArgs("k1").WillReturnRows(rows)

	s := NewPostgresStore(db)
	entries, err := s.Load(context.Background(), "k1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "", entries[0].ToolName)
	assert.Equal(t, "echo", entries[1].ToolName)
	assert.Equal(t, "ph", entries[1].ParamsHash)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreAppendPropagatesSeqError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT COALESCE").WillReturnError(assert.AnError)

	s := NewPostgresStore(db)
	err = s.Append(context.Background(), "k1", ledger.AuditEntry{})
	require.Error(t, err)
}
