// Package dispatch orchestrates one job run: for each recipient it
// validates the address, sends through the selected channel, classifies the
// provider's response, and records the outcome exactly once.
//
// Recipients are processed strictly one at a time, in input order, with a
// pacing delay between sends. Providers throttle bursts and the SMTP channel
// reuses one authenticated connection that is not safe for concurrent use,
// so a single job's loop must never be parallelized. Separate jobs may run
// concurrently; the orchestrator holds no cross-job mutable state.
package dispatch

import (
	"context"
	"time"

	"github.com/Trandung-02/mail-job-manager/internal/domain"
	"github.com/Trandung-02/mail-job-manager/internal/validator"
)

// AddressValidator checks one recipient address before a send is attempted.
type AddressValidator interface {
	Validate(ctx context.Context, address string) validator.Result
}

// OutcomeStore durably records per-recipient failures. RecordFailure must be
// idempotent per (jobID, recipient); HasFailureRecord backs the
// orchestrator-side pre-write check that guarantees at-most-once recording
// across re-runs of the same job.
type OutcomeStore interface {
	RecordFailure(ctx context.Context, jobID, recipient, diagnostic string, channel domain.ChannelType) error
	HasFailureRecord(ctx context.Context, jobID, recipient string) (bool, error)
}

// ProfileLookup resolves a sender profile by id. Best-effort: a miss or a
// lookup failure returns false and never fails the run.
type ProfileLookup interface {
	Lookup(profileID string) (*domain.Profile, bool)
}

// Tracker receives live run progress. All calls are best-effort; a nil
// Tracker disables tracking.
type Tracker interface {
	Update(ctx context.Context, runID string, p Progress)
}

// Progress is a snapshot of a run in flight.
type Progress struct {
	JobID     string `json:"job_id,omitempty"`
	State     string `json:"state"`
	Total     int    `json:"total"`
	Processed int    `json:"processed"`
	Sent      int    `json:"sent"`
	Failed    int    `json:"failed"`
}

// Clock abstracts pacing sleeps so tests can count delays without waiting.
type Clock interface {
	Sleep(ctx context.Context, d time.Duration)
}

type realClock struct{}

func (realClock) Sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
