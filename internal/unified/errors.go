package unified

import "errors"

// Failure kinds returned by the service. Callers branch with errors.Is;
// the HTTP layer maps them to 401/403/404 and everything else to 500.
var (
	// ErrUnauthenticated means no authenticated person could be resolved.
	// A logged-out visitor is a legitimate state, not a server fault.
	ErrUnauthenticated = errors.New("unified: not authenticated")

	// ErrForbidden means the caller lacks the capability, role or
	// organization match the operation requires.
	ErrForbidden = errors.New("unified: forbidden")

	// ErrNotFound means the person, group or organization does not exist.
	ErrNotFound = errors.New("unified: not found")

	// ErrInvalidInput means the request payload failed validation.
	ErrInvalidInput = errors.New("unified: invalid input")
)
