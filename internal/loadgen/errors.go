package loadgen

import (
	"errors"
	"fmt"
)

// Sentinel kinds for loadgen errors.
var (
	ErrNoChallenges = errors.New("service has no challenges")
	ErrVerification = errors.New("verification failed")
)

// APIError is a non-2xx answer from the service.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("service answered %d %s: %s", e.StatusCode, e.Code, e.Message)
}
