package api

import (
	"errors"
	"fmt"
)

// Kind classifies every failure that crosses the network boundary.
type Kind string

const (
	KindNetwork   Kind = "network"
	KindTimeout   Kind = "timeout"
	KindServer    Kind = "server"
	KindMalformed Kind = "malformed"
)

// Error is the only error type the gateway raises. Raw transport and parse
// failures are classified here once and passed through unchanged above.
type Error struct {
	Kind       Kind
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *Error) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("%s: %s (http %d)", e.Kind, e.Message, e.HTTPStatus)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// KindOf extracts the taxonomy kind from err. It returns the empty kind
// when err is nil or not a gateway error.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}
