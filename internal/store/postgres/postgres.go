// Package postgres is the reference sqlx/lib-pq-backed implementation
// of model.ResultStore.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/threatcore/analysis-core/internal/model"
	"github.com/threatcore/analysis-core/internal/svcerr"
)

// Store is the PostgreSQL-backed model.ResultStore.
type Store struct {
	db *sqlx.DB
}

// Open connects to dsn, runs pending migrations, and returns a Store.
func Open(dsn string) (*Store, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := Migrate(db.DB); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// New wraps an already-open *sqlx.DB, letting callers share a
// connection pool or inject a sqlmock-backed one for tests.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// row mirrors the analysis_results table's column shape for scanning.
type row struct {
	AnalysisID          string         `db:"analysis_id"`
	SubmissionID        string         `db:"submission_id"`
	BountyID            string         `db:"bounty_id"`
	Fingerprint         []byte         `db:"fingerprint"`
	Detections          []byte         `db:"detections"`
	ConsensusVerdict    string         `db:"consensus_verdict"`
	ConsensusConfidence float64        `db:"consensus_confidence"`
	ConsensusSeverity   string         `db:"consensus_severity"`
	Tags                []byte         `db:"tags"`
	StartedAt           sql.NullTime   `db:"started_at"`
	CompletedAt         sql.NullTime   `db:"completed_at"`
	Status              string         `db:"status"`
	ProcessingTimeMS    sql.NullInt64  `db:"processing_time_ms"`
	ErrorMessage        string         `db:"error_message"`
	EngineReputations   []byte         `db:"engine_reputations"`
}

func (r row) toResult() (model.AnalysisResult, error) {
	var result model.AnalysisResult
	result.AnalysisID = r.AnalysisID
	result.SubmissionID = r.SubmissionID
	result.BountyID = r.BountyID
	result.ConsensusVerdict = model.Verdict(r.ConsensusVerdict)
	result.ConsensusConfidence = r.ConsensusConfidence
	result.ConsensusSeverity = model.Severity(r.ConsensusSeverity)
	result.Status = model.AnalysisStatus(r.Status)
	result.ErrorMessage = r.ErrorMessage

	if err := json.Unmarshal(r.Fingerprint, &result.Fingerprint); err != nil {
		return result, err
	}
	if err := json.Unmarshal(r.Detections, &result.Detections); err != nil {
		return result, err
	}
	if err := json.Unmarshal(r.Tags, &result.Tags); err != nil {
		return result, err
	}
	if err := json.Unmarshal(r.EngineReputations, &result.EngineReputations); err != nil {
		return result, err
	}
	if r.StartedAt.Valid {
		result.StartedAt = r.StartedAt.Time
	}
	if r.CompletedAt.Valid {
		t := r.CompletedAt.Time
		result.CompletedAt = &t
	}
	if r.ProcessingTimeMS.Valid {
		ms := r.ProcessingTimeMS.Int64
		result.ProcessingTimeMS = &ms
	}
	return result, nil
}

// Put implements model.ResultStore with an upsert on analysis_id.
func (s *Store) Put(ctx context.Context, result model.AnalysisResult) error {
	fingerprint, err := json.Marshal(result.Fingerprint)
	if err != nil {
		return err
	}
	detections, err := json.Marshal(result.Detections)
	if err != nil {
		return err
	}
	tags, err := json.Marshal(result.Tags)
	if err != nil {
		return err
	}
	reputations, err := json.Marshal(result.EngineReputations)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO analysis_results (
			analysis_id, submission_id, bounty_id, fingerprint, detections,
			consensus_verdict, consensus_confidence, consensus_severity, tags,
			started_at, completed_at, status, processing_time_ms, error_message,
			engine_reputations
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (analysis_id) DO UPDATE SET
			submission_id = EXCLUDED.submission_id,
			bounty_id = EXCLUDED.bounty_id,
			fingerprint = EXCLUDED.fingerprint,
			detections = EXCLUDED.detections,
			consensus_verdict = EXCLUDED.consensus_verdict,
			consensus_confidence = EXCLUDED.consensus_confidence,
			consensus_severity = EXCLUDED.consensus_severity,
			tags = EXCLUDED.tags,
			completed_at = EXCLUDED.completed_at,
			status = EXCLUDED.status,
			processing_time_ms = EXCLUDED.processing_time_ms,
			error_message = EXCLUDED.error_message,
			engine_reputations = EXCLUDED.engine_reputations
	`, result.AnalysisID, result.SubmissionID, result.BountyID, fingerprint, detections,
		string(result.ConsensusVerdict), result.ConsensusConfidence, string(result.ConsensusSeverity), tags,
		result.StartedAt, result.CompletedAt, string(result.Status), result.ProcessingTimeMS, result.ErrorMessage,
		reputations)
	return err
}

const selectColumns = `analysis_id, submission_id, bounty_id, fingerprint, detections,
	consensus_verdict, consensus_confidence, consensus_severity, tags,
	started_at, completed_at, status, processing_time_ms, error_message, engine_reputations`

// Get implements model.ResultStore.
func (s *Store) Get(ctx context.Context, analysisID string) (*model.AnalysisResult, error) {
	var r row
	err := s.db.GetContext(ctx, &r, `SELECT `+selectColumns+` FROM analysis_results WHERE analysis_id = $1`, analysisID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, svcerr.NotFound("analysis result not found: " + analysisID)
	}
	if err != nil {
		return nil, svcerr.StorageError(err)
	}
	result, err := r.toResult()
	if err != nil {
		return nil, svcerr.StorageError(err)
	}
	return &result, nil
}

// ListBySubmission implements model.ResultStore.
func (s *Store) ListBySubmission(ctx context.Context, submissionID string) ([]model.AnalysisResult, error) {
	return s.query(ctx, `SELECT `+selectColumns+` FROM analysis_results WHERE submission_id = $1 ORDER BY started_at DESC`, submissionID)
}

// ListRecent implements model.ResultStore.
func (s *Store) ListRecent(ctx context.Context, limit, offset int) ([]model.AnalysisResult, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.query(ctx, `SELECT `+selectColumns+` FROM analysis_results ORDER BY started_at DESC LIMIT $1 OFFSET $2`, limit, offset)
}

// ListByVerdict implements model.ResultStore.
func (s *Store) ListByVerdict(ctx context.Context, verdict model.Verdict, limit int) ([]model.AnalysisResult, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.query(ctx, `SELECT `+selectColumns+` FROM analysis_results WHERE consensus_verdict = $1 ORDER BY started_at DESC LIMIT $2`, string(verdict), limit)
}

func (s *Store) query(ctx context.Context, query string, args ...interface{}) ([]model.AnalysisResult, error) {
	var rows []row
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, svcerr.StorageError(err)
	}
	out := make([]model.AnalysisResult, 0, len(rows))
	for _, r := range rows {
		result, err := r.toResult()
		if err != nil {
			return nil, svcerr.StorageError(err)
		}
		out = append(out, result)
	}
	return out, nil
}
