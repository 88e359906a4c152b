package api

import (
	"errors"
	"fmt"
)

// ErrRemoteCall matches every *Error via errors.Is.
var ErrRemoteCall = errors.New("remote call failed")

// Error is returned for any failed call to the task service: transport
// failure, non-success status, or a body that could not be decoded.
type Error struct {
	Method     string
	Path       string
	RequestID  string
	StatusCode int // 0 when no response was received
	Body       string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode == 0:
		return fmt.Sprintf("API request failed %s %s: %v", e.Method, e.Path, e.Err)
	case e.Body != "":
		return fmt.Sprintf("API error (%d) %s %s: %s", e.StatusCode, e.Method, e.Path, e.Body)
	default:
		return fmt.Sprintf("API error (%d) %s %s: %v", e.StatusCode, e.Method, e.Path, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports ErrRemoteCall as a match.
func (e *Error) Is(target error) bool { return target == ErrRemoteCall }
