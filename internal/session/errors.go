package session

import "errors"

// Sentinel errors surfaced by Open.
var (
	// ErrConflict means the user already has an Active session. Client
	// recoverable: the existing connection must close first.
	ErrConflict = errors.New("session already active")

	// ErrInfra means a container engine call failed. Rendered to callers as
	// a generic internal failure; details are logged server-side.
	ErrInfra = errors.New("sandbox infrastructure error")
)
