package notesync

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrMalformedEvent = errors.New("malformed event")
	ErrPollExhausted  = errors.New("job status poll budget exhausted")
	ErrSessionClosed  = errors.New("session closed")
)

// RemoteError is a structured failure from a mutation or job-status endpoint.
type RemoteError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *RemoteError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("remote %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("remote %d: %s", e.StatusCode, e.Message)
}
