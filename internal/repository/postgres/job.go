package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Trandung-02/mail-job-manager/internal/domain"
	"github.com/Trandung-02/mail-job-manager/internal/service/job"
)

// JobRepo implements job.Repository against PostgreSQL.
type JobRepo struct{ db *sql.DB }

// NewJobRepo creates a Postgres-backed job repository.
func NewJobRepo(db *sql.DB) *JobRepo { return &JobRepo{db: db} }

func (r *JobRepo) Get(ctx context.Context, id string) (*domain.Job, error) {
	j := &domain.Job{}
	var creds []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, from_email, COALESCE(display_name,''), COALESCE(profile_id,''),
		       recipients, subject, body, credentials, status,
		       total_recipients, sent_count, failed_count,
		       last_run_at, created_at, updated_at
		FROM mail_jobs
		WHERE id = $1
	`, id).Scan(
		&j.ID, &j.Name, &j.FromEmail, &j.DisplayName, &j.ProfileID,
		pq.Array(&j.Recipients), &j.Subject, &j.Body, &creds, &j.Status,
		&j.TotalRecipients, &j.SentCount, &j.FailedCount,
		&j.LastRunAt, &j.CreatedAt, &j.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, job.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	if len(creds) > 0 {
		if err := json.Unmarshal(creds, &j.Credentials); err != nil {
			return nil, fmt.Errorf("decode credentials: %w", err)
		}
	}
	return j, nil
}

func (r *JobRepo) List(ctx context.Context, f job.ListFilter) ([]domain.Job, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	countQ := `SELECT COUNT(*) FROM mail_jobs WHERE 1=1`
	args := []interface{}{}
	idx := 1

	if f.Status != "" {
		countQ += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, f.Status)
		idx++
	}
	if f.Search != "" {
		countQ += fmt.Sprintf(" AND (name ILIKE $%d OR subject ILIKE $%d)", idx, idx)
		args = append(args, "%"+f.Search+"%")
		idx++
	}

	var total int
	if err := r.db.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	q := `
		SELECT id, name, from_email, COALESCE(display_name,''), subject, status,
		       total_recipients, sent_count, failed_count, last_run_at, created_at
		FROM mail_jobs
		WHERE 1=1`

	qArgs := []interface{}{}
	qIdx := 1
	if f.Status != "" {
		q += fmt.Sprintf(" AND status = $%d", qIdx)
		qArgs = append(qArgs, f.Status)
		qIdx++
	}
	if f.Search != "" {
		q += fmt.Sprintf(" AND (name ILIKE $%d OR subject ILIKE $%d)", qIdx, qIdx)
		qArgs = append(qArgs, "%"+f.Search+"%")
		qIdx++
	}
	q += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", qIdx, qIdx+1)
	qArgs = append(qArgs, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, qArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []domain.Job
	for rows.Next() {
		var j domain.Job
		if err := rows.Scan(
			&j.ID, &j.Name, &j.FromEmail, &j.DisplayName, &j.Subject, &j.Status,
			&j.TotalRecipients, &j.SentCount, &j.FailedCount, &j.LastRunAt, &j.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, j)
	}
	return out, total, nil
}

func (r *JobRepo) Create(ctx context.Context, j *domain.Job) (string, error) {
	if j.ID == "" {
		j.ID = uuid.New().String()
	}
	creds, err := json.Marshal(j.Credentials)
	if err != nil {
		return "", fmt.Errorf("encode credentials: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO mail_jobs
			(id, name, from_email, display_name, profile_id, recipients,
			 subject, body, credentials, status, total_recipients, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
	`, j.ID, j.Name, j.FromEmail, j.DisplayName, j.ProfileID, pq.Array(j.Recipients),
		j.Subject, j.Body, creds, j.Status, len(j.Recipients))
	if err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}
	return j.ID, nil
}

func (r *JobRepo) Update(ctx context.Context, id string, u job.UpdateFields) error {
	sets := []string{}
	args := []interface{}{}
	idx := 1
	add := func(col string, val interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, idx))
		args = append(args, val)
		idx++
	}

	if u.Name != nil {
		add("name", *u.Name)
	}
	if u.FromEmail != nil {
		add("from_email", *u.FromEmail)
	}
	if u.DisplayName != nil {
		add("display_name", *u.DisplayName)
	}
	if u.ProfileID != nil {
		add("profile_id", *u.ProfileID)
	}
	if u.Recipients != nil {
		add("recipients", pq.Array(*u.Recipients))
		add("total_recipients", len(*u.Recipients))
	}
	if u.Subject != nil {
		add("subject", *u.Subject)
	}
	if u.Body != nil {
		add("body", *u.Body)
	}
	if u.Credentials != nil {
		creds, err := json.Marshal(u.Credentials)
		if err != nil {
			return fmt.Errorf("encode credentials: %w", err)
		}
		add("credentials", creds)
	}

	if len(sets) == 0 {
		return nil
	}

	sets = append(sets, "updated_at = NOW()")
	q := fmt.Sprintf("UPDATE mail_jobs SET %s WHERE id = $%d", strings.Join(sets, ", "), idx)
	args = append(args, id)

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return job.ErrNotFound
	}
	return nil
}

func (r *JobRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM mail_jobs
		WHERE id = $1 AND status <> 'sending'
	`, id)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return job.ErrNotFound
	}
	return nil
}

func (r *JobRepo) UpdateStatus(ctx context.Context, id string, status domain.JobStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE mail_jobs SET status = $1, updated_at = NOW()
		WHERE id = $2
	`, status, id)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return job.ErrNotFound
	}
	return nil
}

func (r *JobRepo) RecordRunStats(ctx context.Context, id string, sent, failed int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE mail_jobs
		SET sent_count = $1, failed_count = $2, last_run_at = NOW(), updated_at = NOW()
		WHERE id = $3
	`, sent, failed, id)
	if err != nil {
		return fmt.Errorf("record run stats: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return job.ErrNotFound
	}
	return nil
}
