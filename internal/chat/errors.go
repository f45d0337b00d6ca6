package chat

import "errors"

var (
	ErrNotFound      = errors.New("thread not found")
	ErrNotAuthorized = errors.New("user does not own this thread")
	ErrValidation    = errors.New("validation error")
	ErrUpstreamAgent = errors.New("agent invocation failed")
	ErrPersistence   = errors.New("persistence failed")

	// ErrThreadBusy is returned when another request holds the thread.
	ErrThreadBusy = errors.New("thread is busy with another request")

	ErrJobNotFound  = errors.New("job not found")
	ErrJobsDisabled = errors.New("async jobs are disabled")
)
