package enroll

import "errors"

var (
	// ErrAlreadyEnrolled indicates this installation already holds a complete
	// enrollment.
	ErrAlreadyEnrolled = errors.New("enroll: device already enrolled")
	// ErrInProgress indicates another enrollment or authentication is in
	// flight; the saga never runs concurrently with itself or with
	// authentication.
	ErrInProgress = errors.New("enroll: operation already in progress")
	// ErrCancelled indicates the caller cancelled the saga mid-flight.
	// Compensation for completed steps has already run by the time the
	// terminal state carrying this error is emitted.
	ErrCancelled = errors.New("enroll: enrollment cancelled")
)
