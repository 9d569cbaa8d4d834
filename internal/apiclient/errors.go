package apiclient

import (
	"fmt"
	"strings"
)

// ConnectionError reports a failed call to the diagnostic API. It carries the
// configured base URL so callers can tell the user where the service was
// expected to be.
type ConnectionError struct {
	BaseURL    string
	Endpoint   string
	StatusCode int
	Detail     string
	Err        error
}

func (e *ConnectionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: request to %s failed", e.Endpoint, e.BaseURL)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " with status %d", e.StatusCode)
	}
	if e.Detail != "" {
		fmt.Fprintf(&b, ": %s", e.Detail)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Guidance is the user-facing banner text for the failure.
func (e *ConnectionError) Guidance() string {
	msg := "Could not reach API. Ensure the diagnostic service is running on " +
		e.BaseURL + " and CORS allows this origin."
	if e.Detail != "" {
		msg += " Server said: " + e.Detail
	}
	return msg
}
