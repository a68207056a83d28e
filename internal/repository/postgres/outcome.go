package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Trandung-02/mail-job-manager/internal/domain"
	"github.com/Trandung-02/mail-job-manager/internal/service/job"
)

// OutcomeRepo persists per-recipient failures and run summaries. It backs
// both the dispatch orchestrator's OutcomeStore and the job service's
// OutcomeRepository.
type OutcomeRepo struct{ db *sql.DB }

// NewOutcomeRepo creates a Postgres-backed outcome repository.
func NewOutcomeRepo(db *sql.DB) *OutcomeRepo { return &OutcomeRepo{db: db} }

// RecordFailure writes one failure record. The (job_id, recipient) primary
// key plus ON CONFLICT DO NOTHING makes the write idempotent, so a re-run
// that hits the same recipient can never duplicate the record.
func (r *OutcomeRepo) RecordFailure(ctx context.Context, jobID, recipient, diagnostic string, channel domain.ChannelType) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO mail_job_failures (job_id, recipient, diagnostic, channel, recorded_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (job_id, recipient) DO NOTHING
	`, jobID, recipient, diagnostic, channel)
	if err != nil {
		return fmt.Errorf("record failure: %w", err)
	}
	return nil
}

// HasFailureRecord reports whether a failure is already recorded for the
// (job, recipient) pair.
func (r *OutcomeRepo) HasFailureRecord(ctx context.Context, jobID, recipient string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM mail_job_failures WHERE job_id = $1 AND recipient = $2
		)
	`, jobID, recipient).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check failure record: %w", err)
	}
	return exists, nil
}

// ListFailures returns the recorded failures for a job, newest first.
func (r *OutcomeRepo) ListFailures(ctx context.Context, jobID string) ([]domain.FailureRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT job_id, recipient, diagnostic, channel, recorded_at
		FROM mail_job_failures
		WHERE job_id = $1
		ORDER BY recorded_at DESC
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list failures: %w", err)
	}
	defer rows.Close()

	var out []domain.FailureRecord
	for rows.Next() {
		var f domain.FailureRecord
		if err := rows.Scan(&f.JobID, &f.Recipient, &f.Diagnostic, &f.Channel, &f.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// RecordRunSummary stores the aggregate result of one dispatch run. The
// variable-length lists go into JSONB columns.
func (r *OutcomeRepo) RecordRunSummary(ctx context.Context, s *domain.RunSummary) error {
	successful, err := json.Marshal(s.SuccessfulEmails)
	if err != nil {
		return fmt.Errorf("encode successful list: %w", err)
	}
	failures, err := json.Marshal(s.Errors)
	if err != nil {
		return fmt.Errorf("encode error list: %w", err)
	}
	potentially, err := json.Marshal(s.PotentiallyFailed)
	if err != nil {
		return fmt.Errorf("encode potentially-failed list: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO mail_job_runs
			(run_id, job_id, total, sent, failed, successful_emails, errors,
			 potentially_failed, channel, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, s.RunID, s.JobID, s.Total, s.Sent, s.Failed, successful, failures,
		potentially, s.Channel, s.StartedAt, s.FinishedAt)
	if err != nil {
		return fmt.Errorf("record run summary: %w", err)
	}
	return nil
}

// GetRunSummary returns one stored run.
func (r *OutcomeRepo) GetRunSummary(ctx context.Context, runID string) (*domain.RunSummary, error) {
	s := &domain.RunSummary{}
	var successful, failures, potentially []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT run_id, COALESCE(job_id,''), total, sent, failed,
		       successful_emails, errors, potentially_failed, channel,
		       started_at, finished_at
		FROM mail_job_runs
		WHERE run_id = $1
	`, runID).Scan(
		&s.RunID, &s.JobID, &s.Total, &s.Sent, &s.Failed,
		&successful, &failures, &potentially, &s.Channel,
		&s.StartedAt, &s.FinishedAt,
	)
	if err == sql.ErrNoRows {
		return nil, job.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run summary: %w", err)
	}

	if err := json.Unmarshal(successful, &s.SuccessfulEmails); err != nil {
		return nil, fmt.Errorf("decode successful list: %w", err)
	}
	if err := json.Unmarshal(failures, &s.Errors); err != nil {
		return nil, fmt.Errorf("decode error list: %w", err)
	}
	if err := json.Unmarshal(potentially, &s.PotentiallyFailed); err != nil {
		return nil, fmt.Errorf("decode potentially-failed list: %w", err)
	}
	return s, nil
}
