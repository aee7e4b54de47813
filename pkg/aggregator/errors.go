package aggregator

import "errors"

var (
	ErrDuplicateTask        = errors.New("task already initialized")
	ErrUnknownTask          = errors.New("unknown task")
	ErrTaskClosed           = errors.New("task is closed")
	ErrUnauthorizedOperator = errors.New("operator is not in the task quorum")
	ErrInvalidSignature     = errors.New("invalid attestation signature")
	ErrInvalidTask          = errors.New("invalid task")
)
