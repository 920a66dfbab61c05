package service

import "errors"

// Sentinel kinds returned by Service operations.
var (
	ErrNotStarted        = errors.New("service not started")
	ErrChallengeNotFound = errors.New("challenge not found")
	ErrNotFound          = errors.New("not found")
	ErrInvalidSubmission = errors.New("invalid submission")
	ErrInFlight          = errors.New("submission already in flight")
)

// ErrSubscribeUnsupported is returned by Subscribe when accepted submissions
// go to an external publisher.
var ErrSubscribeUnsupported = errors.New("subscribe requires the in-process publisher")
