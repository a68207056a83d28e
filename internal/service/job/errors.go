package job

import "errors"

// Sentinel errors for the job service layer.
var (
	ErrNotFound       = errors.New("job not found")
	ErrSendInProgress = errors.New("job is already sending")
	ErrInvalidInput   = errors.New("invalid job input")
)
