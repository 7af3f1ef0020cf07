package match

import "errors"

var (
	ErrAlreadyStarted    = errors.New("matching already started for this inquiry")
	ErrInvalidState      = errors.New("operation invalid for current matching state")
	ErrCandidateNotFound = errors.New("candidate not found")
	ErrNoCandidates      = errors.New("candidate pool is empty")
	ErrInvalidTimeout    = errors.New("timeout must be > 0")
)
