package dispatch

import "errors"

// Precondition errors. These are the only errors Run returns: they abort the
// run before any recipient is processed. Everything after the preconditions
// is absorbed into the RunSummary's failure list.
var (
	ErrMissingSender = errors.New("job has no sender address")
	ErrNoRecipients  = errors.New("job has no recipients")
)
