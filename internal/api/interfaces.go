package api

import (
	"context"

	"github.com/p-arndt/werkbank/internal/session"
)

// SessionService is the session manager surface the HTTP layer drives.
type SessionService interface {
	Open(ctx context.Context, user string, opts session.OpenOpts) (string, error)
	Idle(user string)
}
