package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/unitflow/unitflow/constants"
	"github.com/unitflow/unitflow/internal/common"
)

// Store is the persistence port consumed by the run state machine, the HTTP
// surface, and the batch orchestrator.
type Store interface {
	CreateSubmission(ctx context.Context, s *Submission) error
	GetSubmission(ctx context.Context, id uuid.UUID) (*Submission, error)

	// ClaimExtraction flips the submission to EXTRACTING with a single
	// conditional update. claimed=false means another extraction holds
	// the lock; it is not an error.
	ClaimExtraction(ctx context.Context, id uuid.UUID) (claimed bool, err error)
	ReleaseClaim(ctx context.Context, id uuid.UUID, to constants.SubmissionStatus) error

	CreateRun(ctx context.Context, run *ExtractionRun) error
	// FinishRun writes the run's terminal state, its pages, and the new
	// submission status in one transaction, so a reader never sees a DONE
	// run without its pages.
	FinishRun(ctx context.Context, run *ExtractionRun, pages []PageRow, subStatus constants.SubmissionStatus, extractedText string) error
	LatestRun(ctx context.Context, submissionID uuid.UUID) (*ExtractionRun, error)
	ListRuns(ctx context.Context, submissionID uuid.UUID) ([]*ExtractionRun, error)

	SaveSpecDraft(ctx context.Context, submissionID uuid.UUID, draftJSON []byte) error
	SaveBriefDraft(ctx context.Context, submissionID uuid.UUID, draftJSON []byte) error
}

type sqlStore struct {
	db      *sql.DB
	dialect Dialect
	log     *slog.Logger
}

// NewStore wraps a *sql.DB for either dialect.
func NewStore(db *sql.DB, dialect Dialect, log *slog.Logger) Store {
	if log == nil {
		log = slog.Default()
	}
	return &sqlStore{db: db, dialect: dialect, log: log}
}

// rebind rewrites ? placeholders to $N for Postgres. Queries in this file
// are written in ? style so both dialects share one text.
func (s *sqlStore) rebind(q string) string {
	if s.dialect != DialectPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) CreateSubmission(ctx context.Context, sub *Submission) error {
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	now := time.Now().UTC()
	sub.CreatedAt, sub.UpdatedAt = now, now
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO submissions (id, kind, status, file_path, file_ext, extracted_text, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		sub.ID.String(), string(sub.Kind), string(sub.Status), sub.FilePath, sub.FileExt, sub.ExtractedText, now, now)
	if err != nil {
		s.log.Error("submission insert failed", "submission_id", sub.ID, "err", err)
		return common.WrapError(common.ErrDatabase, "failed to create submission")
	}
	return nil
}

func (s *sqlStore) GetSubmission(ctx context.Context, id uuid.UUID) (*Submission, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, kind, status, file_path, file_ext, extracted_text, created_at, updated_at
		FROM submissions WHERE id = ?`), id.String())

	var sub Submission
	var rawID, kind, status string
	err := row.Scan(&rawID, &kind, &status, &sub.FilePath, &sub.FileExt, &sub.ExtractedText, &sub.CreatedAt, &sub.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.WrapError(common.ErrNotFound, fmt.Sprintf("submission %s not found", id))
	}
	if err != nil {
		s.log.Error("submission fetch failed", "submission_id", id, "err", err)
		return nil, common.WrapError(common.ErrDatabase, "failed to fetch submission")
	}
	sub.ID, err = uuid.Parse(rawID)
	if err != nil {
		return nil, common.WrapError(common.ErrDatabase, "corrupt submission id")
	}
	sub.Kind = constants.DocumentKind(kind)
	sub.Status = constants.SubmissionStatus(status)
	return &sub, nil
}

func (s *sqlStore) ClaimExtraction(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE submissions SET status = ?, updated_at = ?
		WHERE id = ? AND status <> ?`),
		string(constants.SubmissionExtracting), time.Now().UTC(),
		id.String(), string(constants.SubmissionExtracting))
	if err != nil {
		s.log.Error("extraction claim failed", "submission_id", id, "err", err)
		return false, common.WrapError(common.ErrDatabase, "failed to claim extraction")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, common.WrapError(common.ErrDatabase, "failed to read claim result")
	}
	return n == 1, nil
}

func (s *sqlStore) ReleaseClaim(ctx context.Context, id uuid.UUID, to constants.SubmissionStatus) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE submissions SET status = ?, updated_at = ? WHERE id = ?`),
		string(to), time.Now().UTC(), id.String())
	if err != nil {
		s.log.Error("claim release failed", "submission_id", id, "err", err)
		return common.WrapError(common.ErrDatabase, "failed to release claim")
	}
	return nil
}

func (s *sqlStore) CreateRun(ctx context.Context, run *ExtractionRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	meta, warnings, err := marshalRunJSON(run)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO extraction_runs
			(id, submission_id, status, is_scanned, overall_confidence, page_count, warnings, source_meta, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		run.ID.String(), run.SubmissionID.String(), string(run.Status),
		run.IsScanned, run.OverallConfidence, run.PageCount, warnings, meta, run.StartedAt)
	if err != nil {
		s.log.Error("run insert failed", "run_id", run.ID, "submission_id", run.SubmissionID, "err", err)
		return common.WrapError(common.ErrDatabase, "failed to create run")
	}
	s.log.Info("extraction run started", "run_id", run.ID, "submission_id", run.SubmissionID)
	return nil
}

func (s *sqlStore) FinishRun(ctx context.Context, run *ExtractionRun, pages []PageRow, subStatus constants.SubmissionStatus, extractedText string) error {
	meta, warnings, err := marshalRunJSON(run)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if run.FinishedAt == nil {
		run.FinishedAt = &now
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return common.WrapError(common.ErrDatabase, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, s.rebind(`
		UPDATE extraction_runs
		SET status = ?, is_scanned = ?, overall_confidence = ?, page_count = ?,
		    warnings = ?, source_meta = ?, error_message = ?, finished_at = ?
		WHERE id = ?`),
		string(run.Status), run.IsScanned, run.OverallConfidence, run.PageCount,
		warnings, meta, run.ErrorMessage, *run.FinishedAt, run.ID.String())
	if err != nil {
		s.log.Error("run finalize failed", "run_id", run.ID, "err", err)
		return common.WrapError(common.ErrDatabase, "failed to finalize run")
	}

	for _, p := range pages {
		_, err = tx.ExecContext(ctx, s.rebind(`
			INSERT INTO pages (run_id, page_number, text, confidence)
			VALUES (?, ?, ?, ?)`),
			run.ID.String(), p.PageNumber, p.Text, p.Confidence)
		if err != nil {
			s.log.Error("page insert failed", "run_id", run.ID, "page", p.PageNumber, "err", err)
			return common.WrapError(common.ErrDatabase, "failed to persist pages")
		}
	}

	_, err = tx.ExecContext(ctx, s.rebind(`
		UPDATE submissions SET status = ?, extracted_text = ?, updated_at = ?
		WHERE id = ?`),
		string(subStatus), extractedText, now, run.SubmissionID.String())
	if err != nil {
		s.log.Error("submission finalize failed", "submission_id", run.SubmissionID, "err", err)
		return common.WrapError(common.ErrDatabase, "failed to finalize submission")
	}

	if err := tx.Commit(); err != nil {
		return common.WrapError(common.ErrDatabase, "failed to commit run finalize")
	}
	s.log.Info("extraction run finished",
		"run_id", run.ID, "submission_id", run.SubmissionID,
		"status", run.Status, "pages", len(pages), "confidence", run.OverallConfidence)
	return nil
}

func (s *sqlStore) LatestRun(ctx context.Context, submissionID uuid.UUID) (*ExtractionRun, error) {
	runs, err := s.queryRuns(ctx, submissionID, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, common.WrapError(common.ErrNotFound, fmt.Sprintf("no runs for submission %s", submissionID))
	}
	return runs[0], nil
}

func (s *sqlStore) ListRuns(ctx context.Context, submissionID uuid.UUID) ([]*ExtractionRun, error) {
	return s.queryRuns(ctx, submissionID, 0)
}

func (s *sqlStore) queryRuns(ctx context.Context, submissionID uuid.UUID, limit int) ([]*ExtractionRun, error) {
	q := `
		SELECT id, submission_id, status, is_scanned, overall_confidence, page_count,
		       warnings, source_meta, error_message, started_at, finished_at
		FROM extraction_runs WHERE submission_id = ?
		ORDER BY started_at DESC`
	if limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(q), submissionID.String())
	if err != nil {
		s.log.Error("run query failed", "submission_id", submissionID, "err", err)
		return nil, common.WrapError(common.ErrDatabase, "failed to list runs")
	}
	defer rows.Close()

	var out []*ExtractionRun
	for rows.Next() {
		var run ExtractionRun
		var rawID, rawSub, status string
		var warnings, meta []byte
		var finished sql.NullTime
		err := rows.Scan(&rawID, &rawSub, &status, &run.IsScanned, &run.OverallConfidence,
			&run.PageCount, &warnings, &meta, &run.ErrorMessage, &run.StartedAt, &finished)
		if err != nil {
			return nil, common.WrapError(common.ErrDatabase, "failed to scan run")
		}
		if run.ID, err = uuid.Parse(rawID); err != nil {
			return nil, common.WrapError(common.ErrDatabase, "corrupt run id")
		}
		if run.SubmissionID, err = uuid.Parse(rawSub); err != nil {
			return nil, common.WrapError(common.ErrDatabase, "corrupt run submission id")
		}
		run.Status = constants.RunStatus(status)
		if finished.Valid {
			t := finished.Time
			run.FinishedAt = &t
		}
		if len(warnings) > 0 {
			_ = json.Unmarshal(warnings, &run.Warnings)
		}
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &run.SourceMeta)
		}
		out = append(out, &run)
	}
	return out, rows.Err()
}

func (s *sqlStore) SaveSpecDraft(ctx context.Context, submissionID uuid.UUID, draftJSON []byte) error {
	return s.saveDraft(ctx, submissionID, "spec_draft", draftJSON)
}

func (s *sqlStore) SaveBriefDraft(ctx context.Context, submissionID uuid.UUID, draftJSON []byte) error {
	return s.saveDraft(ctx, submissionID, "brief_draft", draftJSON)
}

// Drafts are derived, not append-only: each save overwrites the previous one.
func (s *sqlStore) saveDraft(ctx context.Context, submissionID uuid.UUID, column string, draftJSON []byte) error {
	q := fmt.Sprintf(`UPDATE submissions SET %s = ?, updated_at = ? WHERE id = ?`, column)
	res, err := s.db.ExecContext(ctx, s.rebind(q), draftJSON, time.Now().UTC(), submissionID.String())
	if err != nil {
		s.log.Error("draft save failed", "submission_id", submissionID, "column", column, "err", err)
		return common.WrapError(common.ErrDatabase, "failed to save draft")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.WrapError(common.ErrNotFound, fmt.Sprintf("submission %s not found", submissionID))
	}
	return nil
}

func marshalRunJSON(run *ExtractionRun) (meta, warnings []byte, err error) {
	if run.SourceMeta != nil {
		if meta, err = json.Marshal(run.SourceMeta); err != nil {
			return nil, nil, common.WrapError(common.ErrInternal, "failed to encode run metadata")
		}
	}
	if run.Warnings != nil {
		if warnings, err = json.Marshal(run.Warnings); err != nil {
			return nil, nil, common.WrapError(common.ErrInternal, "failed to encode run warnings")
		}
	}
	return meta, warnings, nil
}
