package api

import (
	"fmt"

	"github.com/pkg/errors"
)

// TransportError is a network, connection or decode failure.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Cause satisfies pkg/errors' causer.
func (e *TransportError) Cause() error { return e.Err }

// BackendError is a reply whose status was not "success".
type BackendError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *BackendError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: backend reported failure (HTTP %d)", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// IsTransport reports whether err came from the network rather than the backend.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsBackend reports whether err is a backend-reported failure.
func IsBackend(err error) bool {
	var be *BackendError
	return errors.As(err, &be)
}

// Message returns the text shown to the technician for err: the backend
// message when there is one, otherwise the underlying error.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var be *BackendError
	if errors.As(err, &be) && be.Message != "" {
		return be.Message
	}
	var te *TransportError
	if errors.As(err, &te) {
		return errors.Cause(te.Err).Error()
	}
	return err.Error()
}
