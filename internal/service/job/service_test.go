package job_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Trandung-02/mail-job-manager/internal/domain"
	"github.com/Trandung-02/mail-job-manager/internal/pkg/distlock"
	"github.com/Trandung-02/mail-job-manager/internal/service/job"
)

// memRepo is an in-memory job repository for unit testing.
type memRepo struct {
	mu   sync.Mutex
	jobs map[string]*domain.Job
}

func newMemRepo() *memRepo {
	return &memRepo{jobs: make(map[string]*domain.Job)}
}

func (m *memRepo) Get(_ context.Context, id string) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, job.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *memRepo) List(_ context.Context, f job.ListFilter) ([]domain.Job, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Job
	for _, j := range m.jobs {
		if f.Status != "" && string(j.Status) != f.Status {
			continue
		}
		out = append(out, *j)
	}
	return out, len(out), nil
}

func (m *memRepo) Create(_ context.Context, j *domain.Job) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *j
	m.jobs[j.ID] = &cp
	return j.ID, nil
}

func (m *memRepo) Update(_ context.Context, id string, u job.UpdateFields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return job.ErrNotFound
	}
	if u.Name != nil {
		j.Name = *u.Name
	}
	if u.Subject != nil {
		j.Subject = *u.Subject
	}
	if u.Recipients != nil {
		j.Recipients = *u.Recipients
	}
	return nil
}

func (m *memRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[id]; !ok {
		return job.ErrNotFound
	}
	delete(m.jobs, id)
	return nil
}

func (m *memRepo) UpdateStatus(_ context.Context, id string, status domain.JobStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return job.ErrNotFound
	}
	j.Status = status
	return nil
}

func (m *memRepo) RecordRunStats(_ context.Context, id string, sent, failed int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return job.ErrNotFound
	}
	j.SentCount = sent
	j.FailedCount = failed
	now := time.Now()
	j.LastRunAt = &now
	return nil
}

// memOutcomes records run summaries and failures in memory.
type memOutcomes struct {
	mu        sync.Mutex
	summaries map[string]*domain.RunSummary
	failures  map[string][]domain.FailureRecord
}

func newMemOutcomes() *memOutcomes {
	return &memOutcomes{
		summaries: make(map[string]*domain.RunSummary),
		failures:  make(map[string][]domain.FailureRecord),
	}
}

func (m *memOutcomes) RecordRunSummary(_ context.Context, s *domain.RunSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.summaries[s.RunID] = &cp
	return nil
}

func (m *memOutcomes) ListFailures(_ context.Context, jobID string) ([]domain.FailureRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures[jobID], nil
}

func (m *memOutcomes) GetRunSummary(_ context.Context, runID string) (*domain.RunSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.summaries[runID]
	if !ok {
		return nil, job.ErrNotFound
	}
	return s, nil
}

// fakeDispatcher returns a canned summary.
type fakeDispatcher struct {
	summary *domain.RunSummary
	err     error
	runs    int
}

func (f *fakeDispatcher) Run(_ context.Context, j *domain.Job) (*domain.RunSummary, error) {
	f.runs++
	if f.err != nil {
		return nil, f.err
	}
	s := *f.summary
	s.JobID = j.ID
	return &s, nil
}

// heldLock simulates a lock another process owns.
type heldLock struct{}

func (heldLock) Acquire(context.Context) (bool, error) { return false, nil }
func (heldLock) Release(context.Context) error         { return nil }

// freeLock always acquires.
type freeLock struct{ acquired, released int }

func (l *freeLock) Acquire(context.Context) (bool, error) { l.acquired++; return true, nil }
func (l *freeLock) Release(context.Context) error         { l.released++; return nil }

func validInput() job.CreateInput {
	return job.CreateInput{
		Name:       "welcome",
		FromEmail:  "a@x.com",
		Recipients: []string{"b@x.com"},
		Subject:    "hi",
		Body:       "body",
		Credentials: domain.Credentials{
			SMTP: domain.SMTPCredentials{AppPassword: "abcd efgh ijkl mnop"},
		},
	}
}

func TestCreateValidation(t *testing.T) {
	svc := job.NewService(newMemRepo(), nil, &fakeDispatcher{}, nil, 0)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*job.CreateInput)
	}{
		{"missing from_email", func(in *job.CreateInput) { in.FromEmail = "" }},
		{"no recipients", func(in *job.CreateInput) { in.Recipients = nil }},
		{"missing subject", func(in *job.CreateInput) { in.Subject = "" }},
		{"bad app password", func(in *job.CreateInput) { in.Credentials.SMTP.AppPassword = "tooshort" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)
			if _, err := svc.Create(ctx, in); !errors.Is(err, job.ErrInvalidInput) {
				t.Errorf("Create() err = %v, want ErrInvalidInput", err)
			}
		})
	}

	j, err := svc.Create(ctx, validInput())
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if j.ID == "" || j.Status != domain.JobDraft || j.TotalRecipients != 1 {
		t.Errorf("created job = %+v", j)
	}
}

func TestTriggerSend(t *testing.T) {
	repo := newMemRepo()
	outcomes := newMemOutcomes()
	disp := &fakeDispatcher{summary: &domain.RunSummary{
		RunID: "run-1", Total: 2, Sent: 1, Failed: 1,
		SuccessfulEmails: []string{"ok@x.com"},
		Errors:           []domain.FailureDetail{{Email: "bad@x.com", Error: "Không tìm thấy địa chỉ email: bad@x.com"}},
	}}
	svc := job.NewService(repo, outcomes, disp, nil, 0)
	ctx := context.Background()

	created, err := svc.Create(ctx, validInput())
	if err != nil {
		t.Fatal(err)
	}

	summary, err := svc.TriggerSend(ctx, created.ID)
	if err != nil {
		t.Fatalf("TriggerSend() error: %v", err)
	}
	if summary.Sent != 1 || summary.Failed != 1 {
		t.Errorf("summary = %+v", summary)
	}

	j, _ := svc.Get(ctx, created.ID)
	if j.Status != domain.JobSent {
		t.Errorf("status = %v, want sent", j.Status)
	}
	if j.SentCount != 1 || j.FailedCount != 1 || j.LastRunAt == nil {
		t.Errorf("stats = sent %d failed %d lastRun %v", j.SentCount, j.FailedCount, j.LastRunAt)
	}
	if _, err := svc.GetRun(ctx, "run-1"); err != nil {
		t.Errorf("GetRun() error: %v", err)
	}
}

func TestTriggerSendLocked(t *testing.T) {
	repo := newMemRepo()
	disp := &fakeDispatcher{summary: &domain.RunSummary{RunID: "run-1", Total: 1, Sent: 1}}
	locks := func(string, time.Duration) distlock.DistLock { return heldLock{} }
	svc := job.NewService(repo, nil, disp, locks, 0)
	ctx := context.Background()

	created, err := svc.Create(ctx, validInput())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.TriggerSend(ctx, created.ID); !errors.Is(err, job.ErrSendInProgress) {
		t.Errorf("TriggerSend() err = %v, want ErrSendInProgress", err)
	}
	if disp.runs != 0 {
		t.Error("dispatcher ran despite the lock being held")
	}
}

func TestTriggerSendReleasesLock(t *testing.T) {
	repo := newMemRepo()
	disp := &fakeDispatcher{summary: &domain.RunSummary{RunID: "run-1", Total: 1, Sent: 1}}
	lock := &freeLock{}
	locks := func(string, time.Duration) distlock.DistLock { return lock }
	svc := job.NewService(repo, nil, disp, locks, 0)
	ctx := context.Background()

	created, _ := svc.Create(ctx, validInput())
	if _, err := svc.TriggerSend(ctx, created.ID); err != nil {
		t.Fatalf("TriggerSend() error: %v", err)
	}
	if lock.acquired != 1 || lock.released != 1 {
		t.Errorf("lock acquired %d released %d, want 1/1", lock.acquired, lock.released)
	}
}

func TestTriggerSendDispatchError(t *testing.T) {
	repo := newMemRepo()
	disp := &fakeDispatcher{err: errors.New("no usable channel")}
	svc := job.NewService(repo, nil, disp, nil, 0)
	ctx := context.Background()

	created, _ := svc.Create(ctx, validInput())
	if _, err := svc.TriggerSend(ctx, created.ID); err == nil {
		t.Fatal("TriggerSend() succeeded, want error")
	}

	j, _ := svc.Get(ctx, created.ID)
	if j.Status != domain.JobFailed {
		t.Errorf("status = %v, want failed after dispatch error", j.Status)
	}
}

func TestTriggerSendUnknownJob(t *testing.T) {
	svc := job.NewService(newMemRepo(), nil, &fakeDispatcher{}, nil, 0)
	if _, err := svc.TriggerSend(context.Background(), "nope"); !errors.Is(err, job.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateValidation(t *testing.T) {
	repo := newMemRepo()
	svc := job.NewService(repo, nil, &fakeDispatcher{}, nil, 0)
	ctx := context.Background()

	created, _ := svc.Create(ctx, validInput())

	empty := []string{}
	if err := svc.Update(ctx, created.ID, job.UpdateFields{Recipients: &empty}); !errors.Is(err, job.ErrInvalidInput) {
		t.Errorf("Update() err = %v, want ErrInvalidInput for empty recipients", err)
	}

	name := "renamed"
	if err := svc.Update(ctx, created.ID, job.UpdateFields{Name: &name}); err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	j, _ := svc.Get(ctx, created.ID)
	if j.Name != "renamed" {
		t.Errorf("name = %q", j.Name)
	}
}

func TestListFailures(t *testing.T) {
	repo := newMemRepo()
	outcomes := newMemOutcomes()
	svc := job.NewService(repo, outcomes, &fakeDispatcher{}, nil, 0)
	ctx := context.Background()

	created, _ := svc.Create(ctx, validInput())
	outcomes.failures[created.ID] = []domain.FailureRecord{
		{JobID: created.ID, Recipient: "bad@x.com", Diagnostic: "Không tìm thấy địa chỉ email: bad@x.com"},
	}

	records, err := svc.ListFailures(ctx, created.ID)
	if err != nil {
		t.Fatalf("ListFailures() error: %v", err)
	}
	if len(records) != 1 || records[0].Recipient != "bad@x.com" {
		t.Errorf("records = %+v", records)
	}

	if _, err := svc.ListFailures(ctx, "nope"); !errors.Is(err, job.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound for unknown job", err)
	}
}
