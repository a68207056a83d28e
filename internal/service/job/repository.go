package job

import (
	"context"

	"github.com/Trandung-02/mail-job-manager/internal/domain"
)

// Repository defines the data access contract for jobs.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single job. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.Job, error)

	// List returns jobs matching the given filter, ordered by created_at DESC.
	List(ctx context.Context, filter ListFilter) ([]domain.Job, int, error)

	// Create inserts a new job and returns its ID.
	Create(ctx context.Context, j *domain.Job) (string, error)

	// Update modifies a job. Only non-nil fields in the update are applied.
	Update(ctx context.Context, id string, u UpdateFields) error

	// Delete removes a job. A job mid-send cannot be deleted.
	Delete(ctx context.Context, id string) error

	// UpdateStatus transitions a job's status.
	UpdateStatus(ctx context.Context, id string, status domain.JobStatus) error

	// RecordRunStats stores the counters of the latest run on the job row.
	RecordRunStats(ctx context.Context, id string, sent, failed int) error
}

// OutcomeRepository persists and reads per-run delivery outcomes.
type OutcomeRepository interface {
	// RecordRunSummary stores the aggregate result of one dispatch run.
	RecordRunSummary(ctx context.Context, s *domain.RunSummary) error

	// ListFailures returns the recorded failures for a job, newest first.
	ListFailures(ctx context.Context, jobID string) ([]domain.FailureRecord, error)

	// GetRunSummary returns one stored run. Returns ErrNotFound if unknown.
	GetRunSummary(ctx context.Context, runID string) (*domain.RunSummary, error)
}

// ListFilter controls pagination and filtering for job lists.
type ListFilter struct {
	Status string
	Search string
	Limit  int
	Offset int
}

// UpdateFields holds the mutable fields for a job update.
// Nil fields are not applied. The JSON keys mirror CreateInput so the
// update endpoint accepts the same body shape as create.
type UpdateFields struct {
	Name        *string             `json:"name"`
	FromEmail   *string             `json:"from_email"`
	DisplayName *string             `json:"display_name"`
	ProfileID   *string             `json:"profile_id"`
	Recipients  *[]string           `json:"recipients"`
	Subject     *string             `json:"subject"`
	Body        *string             `json:"body"`
	Credentials *domain.Credentials `json:"credentials"`
}
