package delivery

import (
	"fmt"
)

type ErrorKind string

const (
	Timeout      ErrorKind = "timeout"
	Unauthorized ErrorKind = "unauthorized"
	Rejected     ErrorKind = "rejected"
	Unreachable  ErrorKind = "unreachable"
)

// Error is a failed delivery. Rejected errors carry the downstream status and body.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case Unauthorized:
		return fmt.Sprintf("delivery unauthorized: status %d", e.StatusCode)
	case Rejected:
		if e.StatusCode == 0 {
			return fmt.Sprintf("delivery rejected: %v", e.Err)
		}
		return fmt.Sprintf("delivery rejected: status %d: %s", e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("delivery %s: %v", e.Kind, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}
