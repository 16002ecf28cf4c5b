package supacheck

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingURL is returned when the REST client is built without an endpoint.
	ErrMissingURL = errors.New("supabaseUrl is required.")

	// ErrMissingKey is returned when the REST client is built without an access key.
	ErrMissingKey = errors.New("supabaseKey is required.")

	// ErrInvalidURL is returned when the endpoint is not an absolute http(s) URL.
	ErrInvalidURL = errors.New("invalid supabaseUrl")

	ErrMissingDBURL = errors.New("database url is required.")
)

// APIError is an error reported by the service alongside (instead of) data.
// It follows the PostgREST error body; SQL driver errors are mapped into it.
type APIError struct {
	Code    string `json:"code"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
	Message string `json:"message"`

	Status int `json:"-"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("(%s) %s", e.Code, e.Message)
}

// ExitError carries the process exit code for a failed check in strict mode.
type ExitError struct {
	Code int
	Kind OutcomeKind
}

func (e ExitError) Error() string {
	return fmt.Sprintf("connectivity check failed: %s", e.Kind)
}
