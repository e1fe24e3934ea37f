package jobs

import "errors"

// Error texts are matched by core.MapError; keep the phrases stable.
var (
	ErrTooManyJobs     = errors.New("too many jobs in progress")
	ErrJobNotFound     = errors.New("job not found")
	ErrNotOwner        = errors.New("not the job owner")
	ErrJobNotCompleted = errors.New("job not completed")
)
