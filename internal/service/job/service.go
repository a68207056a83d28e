package job

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Trandung-02/mail-job-manager/internal/domain"
	"github.com/Trandung-02/mail-job-manager/internal/pkg/distlock"
	"github.com/Trandung-02/mail-job-manager/internal/pkg/logger"
)

// Dispatcher runs one dispatch pass over a job's recipients.
type Dispatcher interface {
	Run(ctx context.Context, j *domain.Job) (*domain.RunSummary, error)
}

// LockFactory builds a distributed lock for a key. Injected so tests can
// substitute an in-memory lock.
type LockFactory func(key string, ttl time.Duration) distlock.DistLock

// Service implements job business logic. It coordinates the repository,
// the dispatch orchestrator, and the per-job send lock.
type Service struct {
	repo       Repository
	outcomes   OutcomeRepository
	dispatcher Dispatcher
	locks      LockFactory
	lockTTL    time.Duration
}

// NewService creates a job service. outcomes may be nil when run history is
// not persisted; locks may be nil to disable cross-process send exclusion.
func NewService(repo Repository, outcomes OutcomeRepository, dispatcher Dispatcher, locks LockFactory, lockTTL time.Duration) *Service {
	if lockTTL <= 0 {
		lockTTL = 30 * time.Minute
	}
	return &Service{
		repo:       repo,
		outcomes:   outcomes,
		dispatcher: dispatcher,
		locks:      locks,
		lockTTL:    lockTTL,
	}
}

// Get returns a single job.
func (s *Service) Get(ctx context.Context, id string) (*domain.Job, error) {
	return s.repo.Get(ctx, id)
}

// List returns jobs matching the filter.
func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.Job, int, error) {
	return s.repo.List(ctx, f)
}

// Create validates and persists a new job in draft status.
func (s *Service) Create(ctx context.Context, input CreateInput) (*domain.Job, error) {
	if input.FromEmail == "" {
		return nil, fmt.Errorf("%w: from_email is required", ErrInvalidInput)
	}
	if len(input.Recipients) == 0 {
		return nil, fmt.Errorf("%w: recipients are required", ErrInvalidInput)
	}
	if input.Subject == "" {
		return nil, fmt.Errorf("%w: subject is required", ErrInvalidInput)
	}
	if _, ok := input.Credentials.SelectChannel(); !ok {
		return nil, fmt.Errorf("%w: no usable credentials (need oauth2 client id/secret/refresh token, or a 16-character app password)", ErrInvalidInput)
	}

	j := &domain.Job{
		ID:              uuid.New().String(),
		Name:            input.Name,
		FromEmail:       input.FromEmail,
		DisplayName:     input.DisplayName,
		ProfileID:       input.ProfileID,
		Recipients:      input.Recipients,
		Subject:         input.Subject,
		Body:            input.Body,
		Credentials:     input.Credentials,
		Status:          domain.JobDraft,
		TotalRecipients: len(input.Recipients),
	}

	id, err := s.repo.Create(ctx, j)
	if err != nil {
		return nil, err
	}
	j.ID = id
	return j, nil
}

// Update modifies mutable job fields.
func (s *Service) Update(ctx context.Context, id string, u UpdateFields) error {
	if u.Recipients != nil && len(*u.Recipients) == 0 {
		return fmt.Errorf("%w: recipients cannot be emptied", ErrInvalidInput)
	}
	if u.Credentials != nil {
		if _, ok := u.Credentials.SelectChannel(); !ok {
			return fmt.Errorf("%w: no usable credentials", ErrInvalidInput)
		}
	}
	return s.repo.Update(ctx, id, u)
}

// Delete removes a job.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// TriggerSend runs one dispatch pass over the job's recipients and returns
// the run summary. A per-job lock guarantees at most one run per job at a
// time across processes; a second trigger while a run is active returns
// ErrSendInProgress.
func (s *Service) TriggerSend(ctx context.Context, id string) (*domain.RunSummary, error) {
	j, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.locks != nil {
		lock := s.locks("job:send:"+id, s.lockTTL)
		ok, err := lock.Acquire(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquire send lock: %w", err)
		}
		if !ok {
			return nil, ErrSendInProgress
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("send lock release failed", "job_id", id, "error", err.Error())
			}
		}()
	}

	if err := s.repo.UpdateStatus(ctx, id, domain.JobSending); err != nil {
		return nil, fmt.Errorf("transition to sending: %w", err)
	}

	summary, err := s.dispatcher.Run(ctx, j)
	if err != nil {
		if stErr := s.repo.UpdateStatus(ctx, id, domain.JobFailed); stErr != nil {
			logger.Error("status rollback failed", "job_id", id, "error", stErr.Error())
		}
		return nil, err
	}

	s.finishRun(ctx, j, summary)
	return summary, nil
}

// finishRun persists the run result. Bookkeeping failures are logged, not
// returned: the emails are already out.
func (s *Service) finishRun(ctx context.Context, j *domain.Job, summary *domain.RunSummary) {
	if s.outcomes != nil {
		if err := s.outcomes.RecordRunSummary(ctx, summary); err != nil {
			logger.Error("run summary write failed", "job_id", j.ID, "run_id", summary.RunID, "error", err.Error())
		}
	}
	if err := s.repo.RecordRunStats(ctx, j.ID, summary.Sent, summary.Failed); err != nil {
		logger.Error("run stats write failed", "job_id", j.ID, "error", err.Error())
	}

	status := domain.JobSent
	if summary.Sent == 0 {
		status = domain.JobFailed
	}
	if err := s.repo.UpdateStatus(ctx, j.ID, status); err != nil {
		logger.Error("status update failed", "job_id", j.ID, "error", err.Error())
	}

	logger.Info("job run recorded",
		"job_id", j.ID, "run_id", summary.RunID, "sent", summary.Sent, "failed", summary.Failed, "status", string(status))
}

// ListFailures returns the recorded failures for a job.
func (s *Service) ListFailures(ctx context.Context, jobID string) ([]domain.FailureRecord, error) {
	if _, err := s.repo.Get(ctx, jobID); err != nil {
		return nil, err
	}
	if s.outcomes == nil {
		return nil, nil
	}
	return s.outcomes.ListFailures(ctx, jobID)
}

// GetRun returns one stored run summary.
func (s *Service) GetRun(ctx context.Context, runID string) (*domain.RunSummary, error) {
	if s.outcomes == nil {
		return nil, ErrNotFound
	}
	return s.outcomes.GetRunSummary(ctx, runID)
}

// CreateInput holds the fields for creating a new job.
type CreateInput struct {
	Name        string             `json:"name"`
	FromEmail   string             `json:"from_email"`
	DisplayName string             `json:"display_name"`
	ProfileID   string             `json:"profile_id"`
	Recipients  []string           `json:"recipients"`
	Subject     string             `json:"subject"`
	Body        string             `json:"body"`
	Credentials domain.Credentials `json:"credentials"`
}
