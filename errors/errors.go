package errors

import "fmt"

var (
	ErrValidation       = fmt.Errorf("invalid input")
	ErrNotFound         = fmt.Errorf("post not found")
	ErrForbidden        = fmt.Errorf("principal is not the owner")
	ErrCacheUnavailable = fmt.Errorf("cache backend unavailable")
	ErrNoHandler        = fmt.Errorf("no handler registered for job type")
	ErrJobNotPending    = fmt.Errorf("job is no longer pending")
	ErrJobNotInFlight   = fmt.Errorf("job is not in flight")
	ErrWorkerPanic      = fmt.Errorf("worker panic")
	ErrInvalidPayload   = fmt.Errorf("unexpected event payload type")
)
