package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threatcore/analysis-core/internal/model"
	"github.com/threatcore/analysis-core/internal/svcerr"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, "postgres")), mock
}

func TestStore_PutExecutesUpsert(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO analysis_results")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := s.Put(context.Background(), model.AnalysisResult{
		AnalysisID: "a1", SubmissionID: "s1", ConsensusVerdict: model.VerdictBenign, StartedAt: time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetReturnsResult(t *testing.T) {
	s, mock := newMockStore(t)
	cols := []string{"analysis_id", "submission_id", "bounty_id", "fingerprint", "detections",
		"consensus_verdict", "consensus_confidence", "consensus_severity", "tags",
		"started_at", "completed_at", "status", "processing_time_ms", "error_message", "engine_reputations"}
	rows := sqlmock.NewRows(cols).AddRow(
		"a1", "s1", "", []byte(`{}`), []byte(`[]`),
		"malicious", 0.9, "high", []byte(`[]`),
		time.Now(), nil, "completed", nil, "", []byte(`{}`),
	)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT")).WillReturnRows(rows)

	result, err := s.Get(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, model.VerdictMalicious, result.ConsensusVerdict)
}

func TestStore_GetMissingReturnsNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT")).WillReturnError(sql.ErrNoRows)

	_, err := s.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, svcerr.Is(err, svcerr.CodeNotFound))
}
