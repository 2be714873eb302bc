package gate

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lumenplan/chatgate/internal/audit"
	"github.com/lumenplan/chatgate/internal/csrf"
	"github.com/lumenplan/chatgate/internal/ratelimit"
	"github.com/lumenplan/chatgate/internal/session"
)

// Gate composes session verification, CSRF enforcement, route
// classification, and rate limiting into one pass/deny decision per
// request. Each stage can short-circuit with a terminal deny; no stage's
// failure masks another's decision.
type Gate struct {
	verifier *session.Verifier
	guard    *csrf.Guard
	limiter  *ratelimit.Manager
	sink     audit.Sink

	limit        int
	secureCookie bool
	nowFn        func() time.Time
}

// New constructs a Gate.
func New(verifier *session.Verifier, guard *csrf.Guard, limiter *ratelimit.Manager, sink audit.Sink, limit int, secureCookie bool) *Gate {
	if sink == nil {
		sink = audit.NopSink{}
	}
	return &Gate{
		verifier:     verifier,
		guard:        guard,
		limiter:      limiter,
		sink:         sink,
		limit:        limit,
		secureCookie: secureCookie,
		nowFn:        time.Now,
	}
}

// Middleware returns the gin middleware evaluating the gate per request.
func (g *Gate) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Header("X-Request-Id", uuid.NewString())
		if isAPIRoute(path) {
			// API responses are never cached or sniffed, denials included.
			c.Header("X-Content-Type-Options", "nosniff")
			c.Header("X-Frame-Options", "DENY")
			c.Header("Cache-Control", "no-store")
		}

		result := g.verifier.Verify(c)
		c.Set(identityContextKey, result)
		if result.Refreshed != nil {
			g.attachSessionCookie(c, result.Refreshed)
			g.emit(c, audit.ActionSessionRefresh, result, nil)
		}

		// A token is issued before any decision so the client always has
		// one available, GET requests included.
		g.guard.EnsureCookie(c)

		if g.guard.Protects(method, path) {
			if errValidate := g.guard.Validate(c); errValidate != nil {
				g.emit(c, audit.ActionCSRFRejected, result, map[string]any{
					"path":   path,
					"method": method,
					"reason": errValidate.Error(),
				})
				Deny(c, http.StatusForbidden, CodeCSRFValidationFailed, "CSRF validation failed")
				return
			}
		}

		switch {
		case isAuthPage(path) && result.Authenticated():
			c.Redirect(http.StatusFound, "/")
			c.Abort()
			return
		case isProtectedPage(path) && !result.Authenticated():
			g.emit(c, audit.ActionAuthRejected, result, map[string]any{"path": path})
			c.Redirect(http.StatusFound, "/login?redirectTo="+url.QueryEscape(path))
			c.Abort()
			return
		case isProtectedAPI(path) && !result.Authenticated():
			g.emit(c, audit.ActionAuthRejected, result, map[string]any{"path": path})
			Deny(c, http.StatusUnauthorized, CodeUnauthorized, "authentication required")
			return
		}

		if isQuotaMetered(path) {
			userKey := ""
			if result.Authenticated() {
				userKey = result.Key()
			}
			key := ratelimit.KeyFor(userKey, c.ClientIP())
			decision := g.limiter.Check(c.Request.Context(), key, g.limit)
			resetIn := decision.ResetIn(g.nowFn())

			c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			c.Header("X-RateLimit-Reset", strconv.Itoa(resetIn))

			if !decision.Allowed {
				c.Header("Retry-After", strconv.Itoa(resetIn))
				g.emit(c, audit.ActionRateLimited, result, map[string]any{
					"path":     path,
					"limit":    decision.Limit,
					"reset_in": resetIn,
				})
				Deny(c, http.StatusTooManyRequests, CodeRateLimitExceeded,
					fmt.Sprintf("rate limit exceeded, retry in %d seconds", resetIn))
				return
			}
		}

		c.Next()
	}
}

// attachSessionCookie extends the client session with refreshed artifacts.
// The session cookie is provider-owned and opaque; unlike the CSRF cookie
// it stays HttpOnly.
func (g *Gate) attachSessionCookie(c *gin.Context, artifacts *session.Artifacts) {
	maxAge := int(time.Until(artifacts.ExpiresAt) / time.Second)
	if maxAge <= 0 {
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(session.CookieName, artifacts.Token, maxAge, "/", "", g.secureCookie, true)
}

func (g *Gate) emit(c *gin.Context, action audit.Action, result session.Result, detail map[string]any) {
	g.sink.Record(c.Request.Context(), audit.Event{
		Action:    action,
		Identity:  result.Key(),
		Detail:    detail,
		SourceIP:  c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
}
