package backend

import (
	"errors"
	"fmt"

	"github.com/fjod/go_pos/internal/domain"
)

// TransportError means no usable response was received: dial or timeout failures,
// undecodable bodies, or an open circuit breaker.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{domain.ErrTransport, e.Err}
}

// RejectionError is a non-2xx response. Message is the backend's {error} text when present.
type RejectionError struct {
	Op      string
	Status  int
	Message string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Message, e.Status)
}

func (e *RejectionError) Unwrap() error {
	return domain.ErrRejected
}

// Message returns the text an operator should see for err: the backend's own message
// for rejections, the error string otherwise.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var rej *RejectionError
	if errors.As(err, &rej) && rej.Message != "" {
		return rej.Message
	}
	var tr *TransportError
	if errors.As(err, &tr) {
		return "backend unreachable"
	}
	return err.Error()
}
