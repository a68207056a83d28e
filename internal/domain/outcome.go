package domain

import "time"

// OutcomeKind classifies the result of one delivery attempt. The three-way
// distinction is deliberate: a relay accepting a message is not proof of
// delivery, so ambiguous acceptances are tracked separately from confirmed
// sends and confident rejections.
type OutcomeKind string

const (
	OutcomeSent              OutcomeKind = "sent"
	OutcomeRejected          OutcomeKind = "rejected"
	OutcomePotentiallyFailed OutcomeKind = "potentially_failed"
)

// DeliveryOutcome records the result of one send attempt for one recipient.
type DeliveryOutcome struct {
	Recipient  string      `json:"recipient"`
	Kind       OutcomeKind `json:"kind"`
	Diagnostic string      `json:"diagnostic"`
	Channel    ChannelType `json:"channel"`
}

// FailureRecord is a persisted per-recipient failure, at most one per
// (job, recipient) pair across re-runs of the same job.
type FailureRecord struct {
	JobID      string      `json:"job_id" db:"job_id"`
	Recipient  string      `json:"recipient" db:"recipient"`
	Diagnostic string      `json:"diagnostic" db:"diagnostic"`
	Channel    ChannelType `json:"channel" db:"channel"`
	RecordedAt time.Time   `json:"recorded_at" db:"recorded_at"`
}

// FailureDetail is the summary view of a failed recipient.
type FailureDetail struct {
	Email string `json:"email"`
	Error string `json:"error"`
}

// RunSummary aggregates one invocation of the dispatch orchestrator.
// Invariant: Sent + Failed == Total, and no address appears in both
// SuccessfulEmails and Errors.
type RunSummary struct {
	RunID             string          `json:"run_id"`
	JobID             string          `json:"job_id,omitempty"`
	Total             int             `json:"total"`
	Sent              int             `json:"sent"`
	Failed            int             `json:"failed"`
	SuccessfulEmails  []string        `json:"successful_emails"`
	Errors            []FailureDetail `json:"errors"`
	PotentiallyFailed []string        `json:"potentially_failed"`
	Channel           ChannelType     `json:"channel"`
	StartedAt         time.Time       `json:"started_at"`
	FinishedAt        time.Time       `json:"finished_at"`
}
