package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ProtocolError is a malformed or out-of-order conformance message. The
// server answers it with an error response and keeps the session open.
type ProtocolError struct {
	Message string
	Cause   error
}

func (e *ProtocolError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ProtocolError) Unwrap() error {
	return e.Cause
}

// IsProtocolError reports whether err or anything it wraps is a protocol error.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

func WrapProtocolError(err error, message string) *ProtocolError {
	return &ProtocolError{
		Message: message,
		Cause:   err,
	}
}

func ProtocolErrorf(format string, args ...any) *ProtocolError {
	return &ProtocolError{
		Message: fmt.Sprintf(format, args...),
	}
}
