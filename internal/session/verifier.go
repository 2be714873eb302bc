package session

import (
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const (
	// Anonymous is the identity value for requests with no valid session.
	// It is a legitimate caller reference, never quota-exempt.
	Anonymous = "anonymous"
	// CookieName is the session cookie owned by the identity provider.
	CookieName = "session_token"
)

// Result is the outcome of verifying one request's session.
type Result struct {
	Identity  *Identity
	Refreshed *Artifacts
}

// Authenticated reports whether the request carries a valid session.
func (r Result) Authenticated() bool {
	return r.Identity != nil
}

// Key returns the caller reference used for rate-limit and audit keys.
func (r Result) Key() string {
	if r.Identity == nil {
		return Anonymous
	}
	return strconv.FormatUint(r.Identity.UserID, 10)
}

// Verifier resolves request identities through a session provider.
type Verifier struct {
	provider Provider
}

// NewVerifier constructs a Verifier.
func NewVerifier(provider Provider) *Verifier {
	return &Verifier{provider: provider}
}

// Verify resolves the identity for one request. A missing or invalid
// session and any provider failure all degrade to anonymous; the request
// proceeds to route classification either way. At most one refresh call is
// made per request.
func (v *Verifier) Verify(c *gin.Context) Result {
	token, errCookie := c.Cookie(CookieName)
	if errCookie != nil || token == "" {
		return Result{}
	}
	ctx := c.Request.Context()

	identity, errCurrent := v.provider.CurrentUser(ctx, token)
	if errCurrent != nil {
		log.WithError(errCurrent).Warn("session: provider lookup failed, treating as anonymous")
		return Result{}
	}
	if identity == nil {
		return Result{}
	}

	refreshed, errRefresh := v.provider.Refresh(ctx, token)
	if errRefresh != nil {
		log.WithError(errRefresh).Warn("session: refresh failed")
		refreshed = nil
	}
	return Result{Identity: identity, Refreshed: refreshed}
}
