package session

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrNotAuthenticated is returned by authenticated operations called before a successful Login.
var ErrNotAuthenticated = errors.New("session: not authenticated")

// ValidationError is returned when a response does not have the expected shape.
type ValidationError struct {
	Op     string
	Reason string
	Body   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("session: %s: invalid response: %s", e.Op, e.Reason)
}

// ProtocolError is returned when a response cannot be parsed or decrypted, or reports failure.
type ProtocolError struct {
	Op     string
	Reason string
	Body   string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("session: %s: %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("session: %s: %s", e.Op, e.Reason)
}

func (e *ProtocolError) Unwrap() error { return e.Err }
