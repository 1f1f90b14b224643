package storeapi

import (
	"fmt"
	"strings"
)

// APIError is returned for every failed store API call. StatusCode is zero
// when the request never produced an HTTP response.
type APIError struct {
	StatusCode int
	Message    string
	Cause      error
}

func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}

	msg := strings.TrimSpace(e.Message)
	if e.StatusCode > 0 && msg == "" {
		msg = fmt.Sprintf("server error: %d", e.StatusCode)
	}
	if e.Cause != nil {
		if msg == "" {
			return e.Cause.Error()
		}
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}
