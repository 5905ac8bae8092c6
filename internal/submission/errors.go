package submission

import (
	"errors"
	"fmt"
)

// Errors returned by the service.
var (
	ErrSubmissionsDisabled = errors.New("proof submissions are temporarily disabled")
	ErrInvalidReview       = errors.New("invalid review")
)

// RejectionError is a submission refused for a reason the submitter can act
// on: bad input or an image that failed the quality gate.
type RejectionError struct {
	Reason string
	Err    error
}

func (e *RejectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("submission rejected: %s: %v", e.Reason, e.Err)
	}
	return "submission rejected: " + e.Reason
}

func (e *RejectionError) Unwrap() error {
	return e.Err
}

func reject(reason string, err error) error {
	return &RejectionError{Reason: reason, Err: err}
}
