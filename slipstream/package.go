// Package slipstream implements a client for the SlipStream HTTP API.
//
// The client covers the parts of the API needed to drive deployments: session
// login, run (deployment) management, the module catalog, CIMI resource
// search, and the user profile. It holds a session cookie obtained at login
// and does not retry or re-authenticate; an expired session surfaces as an
// *APIError with status 401 on the next call.
package slipstream

import (
	"errors"
	"fmt"
)

// APIError is returned for any upstream response outside the 2xx range.
type APIError struct {
	StatusCode int
	Method     string
	URL        string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("slipstream: %s %s returned status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("slipstream: %s %s returned status %d: %s", e.Method, e.URL, e.StatusCode, e.Message)
}

// IsNotFound reports whether err is an *APIError with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 404
	}
	return false
}
