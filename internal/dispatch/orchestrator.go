package dispatch

import (
	"context"
	"time"

	"github.com/Trandung-02/mail-job-manager/internal/classify"
	"github.com/Trandung-02/mail-job-manager/internal/domain"
	"github.com/Trandung-02/mail-job-manager/internal/pkg/logger"
	"github.com/Trandung-02/mail-job-manager/internal/transport"
	"github.com/google/uuid"
)

// Config holds the orchestrator's tuning knobs.
type Config struct {
	// InterSendDelay paces sequential sends against provider rate limits.
	// The delay is skipped after the last recipient.
	InterSendDelay time.Duration
}

// Orchestrator runs the per-recipient dispatch pipeline for one job at a
// time. It is safe to share across concurrent jobs: all per-run state lives
// on the stack of Run.
type Orchestrator struct {
	validator  AddressValidator
	classifier *classify.Classifier
	senders    transport.Factory
	store      OutcomeStore
	profiles   ProfileLookup
	tracker    Tracker
	clock      Clock
	cfg        Config
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithOutcomeStore attaches durable failure recording. Without a store,
// failures are still computed and returned in the summary, just not
// persisted.
func WithOutcomeStore(s OutcomeStore) Option {
	return func(o *Orchestrator) { o.store = s }
}

// WithProfileLookup attaches best-effort display-name resolution.
func WithProfileLookup(p ProfileLookup) Option {
	return func(o *Orchestrator) { o.profiles = p }
}

// WithTracker attaches live progress reporting.
func WithTracker(t Tracker) Option {
	return func(o *Orchestrator) { o.tracker = t }
}

// WithClock injects a clock (used by tests to observe pacing).
func WithClock(c Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// New creates an Orchestrator.
func New(v AddressValidator, cls *classify.Classifier, senders transport.Factory, cfg Config, opts ...Option) *Orchestrator {
	if cfg.InterSendDelay == 0 {
		cfg.InterSendDelay = time.Second
	}
	o := &Orchestrator{
		validator:  v,
		classifier: cls,
		senders:    senders,
		clock:      realClock{},
		cfg:        cfg,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes one dispatch run over the job's recipient list and returns
// the aggregate summary. It returns an error only when the run cannot start
// at all: missing sender, empty recipient list, or no usable channel.
// Individual recipient failures never abort the run.
func (o *Orchestrator) Run(ctx context.Context, job *domain.Job) (*domain.RunSummary, error) {
	if job.FromEmail == "" {
		return nil, ErrMissingSender
	}
	if len(job.Recipients) == 0 {
		return nil, ErrNoRecipients
	}

	sender, err := o.senders.SenderFor(ctx, job.FromEmail, job.Credentials)
	if err != nil {
		return nil, err
	}
	// The SMTP session is a scoped resource: one handshake before the
	// loop, released on every exit path.
	defer sender.Close()

	channel := sender.Channel()
	fromName := o.resolveDisplayName(job)
	runID := uuid.New().String()

	summary := &domain.RunSummary{
		RunID:     runID,
		JobID:     job.ID,
		Total:     len(job.Recipients),
		Channel:   channel,
		StartedAt: time.Now(),
	}

	logger.Info("dispatch run started",
		"run_id", runID, "job_id", job.ID, "channel", string(channel), "total", len(job.Recipients))

	for i, recipient := range job.Recipients {
		outcome := o.processRecipient(ctx, sender, job, fromName, recipient)

		switch outcome.Kind {
		case domain.OutcomeSent:
			summary.Sent++
			summary.SuccessfulEmails = append(summary.SuccessfulEmails, recipient)
		case domain.OutcomePotentiallyFailed:
			summary.PotentiallyFailed = append(summary.PotentiallyFailed, recipient)
			summary.Errors = append(summary.Errors, domain.FailureDetail{Email: recipient, Error: outcome.Diagnostic})
			o.recordFailure(ctx, job.ID, recipient, outcome.Diagnostic, channel)
		default:
			summary.Errors = append(summary.Errors, domain.FailureDetail{Email: recipient, Error: outcome.Diagnostic})
			o.recordFailure(ctx, job.ID, recipient, outcome.Diagnostic, channel)
		}

		o.trackProgress(ctx, runID, job.ID, summary, i+1)

		if i < len(job.Recipients)-1 {
			o.clock.Sleep(ctx, o.cfg.InterSendDelay)
		}
	}

	summary.Failed = summary.Total - summary.Sent
	summary.FinishedAt = time.Now()

	logger.Info("dispatch run finished",
		"run_id", runID, "job_id", job.ID, "sent", summary.Sent, "failed", summary.Failed,
		"potentially_failed", len(summary.PotentiallyFailed))

	return summary, nil
}

// processRecipient runs the validate, send, classify steps for one recipient.
// Transport errors are caught here; nothing a single recipient does can
// escape the loop.
func (o *Orchestrator) processRecipient(ctx context.Context, sender transport.Sender, job *domain.Job, fromName, recipient string) classify.Outcome {
	res := o.validator.Validate(ctx, recipient)
	for _, w := range res.Warnings {
		logger.Warn("address warning", "recipient", recipient, "warning", w)
	}
	if !res.Valid {
		return classify.Outcome{Kind: domain.OutcomeRejected, Diagnostic: res.Err}
	}

	msg := &domain.Message{
		From:     job.FromEmail,
		FromName: fromName,
		To:       recipient,
		Subject:  job.Subject,
		TextBody: job.Body,
		HTMLBody: job.HTMLBody(),
	}
	if job.ID != "" {
		msg.Headers = map[string]string{"X-Job": job.ID}
	}

	result, sendErr := sender.Send(ctx, msg)
	if sendErr != nil {
		logger.Warn("send failed", "recipient", recipient, "error", sendErr.Error())
	}

	return o.classifier.Classify(sender.Channel(), recipient, result, sendErr)
}

// resolveDisplayName prefers the job's explicit display name, then a
// best-effort profile lookup, then the sender address itself.
func (o *Orchestrator) resolveDisplayName(job *domain.Job) string {
	if job.DisplayName != "" {
		return job.DisplayName
	}
	if o.profiles != nil && job.ProfileID != "" {
		if p, ok := o.profiles.Lookup(job.ProfileID); ok && p.DisplayName != "" {
			return p.DisplayName
		}
	}
	return job.FromEmail
}

// recordFailure persists one failure record, at most once per
// (job, recipient). Persistence problems are logged and swallowed: they
// must never affect counting or reprocess an already-handled recipient.
func (o *Orchestrator) recordFailure(ctx context.Context, jobID, recipient, diagnostic string, channel domain.ChannelType) {
	if o.store == nil || jobID == "" {
		return
	}

	exists, err := o.store.HasFailureRecord(ctx, jobID, recipient)
	if err != nil {
		logger.Error("failure-record lookup failed", "job_id", jobID, "recipient", recipient, "error", err.Error())
		return
	}
	if exists {
		return
	}
	if err := o.store.RecordFailure(ctx, jobID, recipient, diagnostic, channel); err != nil {
		logger.Error("failure-record write failed", "job_id", jobID, "recipient", recipient, "error", err.Error())
	}
}

func (o *Orchestrator) trackProgress(ctx context.Context, runID, jobID string, s *domain.RunSummary, processed int) {
	if o.tracker == nil {
		return
	}
	state := "sending"
	if processed == s.Total {
		state = "done"
	}
	o.tracker.Update(ctx, runID, Progress{
		JobID:     jobID,
		State:     state,
		Total:     s.Total,
		Processed: processed,
		Sent:      s.Sent,
		Failed:    processed - s.Sent,
	})
}
