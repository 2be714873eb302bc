package session

import (
	"context"
	"time"
)

// Identity describes an authenticated caller.
type Identity struct {
	UserID   uint64
	Username string
}

// Artifacts carries refreshed session material the gate must attach to the
// outgoing response so the client's session is transparently extended.
type Artifacts struct {
	Token     string
	ExpiresAt time.Time
}

// Provider is the external session/identity contract. The gate only reads
// and writes the cookies it is given; session cryptography belongs to the
// provider.
type Provider interface {
	// CurrentUser resolves the identity carried by a session token. A nil
	// identity with a nil error means no valid session, which is an
	// ordinary outcome, not an error.
	CurrentUser(ctx context.Context, token string) (*Identity, error)
	// Refresh returns replacement session artifacts when the token is near
	// expiry, or nil when no refresh is needed.
	Refresh(ctx context.Context, token string) (*Artifacts, error)
}
