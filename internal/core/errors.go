package core

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned by backend adapters on a 401-class response
	ErrUnauthorized = errors.New("session is no longer authorized")
	// ErrNotAuthenticated is returned when an authenticated call is attempted without a credential
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrCredentialNotFound is returned by a CredentialStore with nothing persisted
	ErrCredentialNotFound = errors.New("credential not found")
)

// GenericRequestError is shown when the backend gives no message of its own
const GenericRequestError = "could not reach the analysis backend"

// APIError is a non-401 failure response from the backend
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Message)
}

// UserMessage turns a request error into the single line shown to the operator.
// Server supplied messages win; anything else is reported as a connectivity problem.
func UserMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return GenericRequestError
}
