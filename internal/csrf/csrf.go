package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Cookie and header names of the double-submit token pair.
const (
	CookieName = "csrf_token"
	HeaderName = "X-CSRF-Token"
)

const (
	tokenBytes   = 32
	cookieMaxAge = 24 * 60 * 60
	cookiePath   = "/"
)

// Validation failure causes. Both map to the same terminal deny.
var (
	ErrTokenMissing  = errors.New("csrf: token missing")
	ErrTokenMismatch = errors.New("csrf: token mismatch")
)

// GenerateToken returns a new random token encoded as hex.
func GenerateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, errRead := rand.Read(buf); errRead != nil {
		return "", fmt.Errorf("csrf: generate token: %w", errRead)
	}
	return hex.EncodeToString(buf), nil
}

// Guard issues and validates double-submit anti-forgery tokens.
type Guard struct {
	protectedPrefixes []string
	skipValidation    bool
	secureCookie      bool
}

// NewGuard constructs a Guard. skipValidation disables the validation step
// entirely and is intended for non-production environments only.
func NewGuard(protectedPrefixes []string, skipValidation, secureCookie bool) *Guard {
	if len(protectedPrefixes) == 0 {
		protectedPrefixes = []string{"/api/"}
	}
	if skipValidation {
		log.Warn("csrf: validation disabled by configuration, do not use in production")
	}
	return &Guard{
		protectedPrefixes: protectedPrefixes,
		skipValidation:    skipValidation,
		secureCookie:      secureCookie,
	}
}

// EnsureCookie sets a csrf_token cookie when the request carries none.
// This runs for every method, GET included, so a token is always available
// before the client needs to echo one back.
func (g *Guard) EnsureCookie(c *gin.Context) {
	if _, errCookie := c.Cookie(CookieName); errCookie == nil {
		return
	}
	token, errGenerate := GenerateToken()
	if errGenerate != nil {
		log.WithError(errGenerate).Error("csrf: token generation failed")
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	// HttpOnly must stay false: the double-submit protocol requires the
	// page script to read the cookie and echo it in the request header.
	c.SetCookie(CookieName, token, cookieMaxAge, cookiePath, "", g.secureCookie, false)
}

// Protects reports whether the method and path combination requires
// validation: state-changing methods under the protected prefixes.
func (g *Guard) Protects(method, path string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return false
	}
	for _, prefix := range g.protectedPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Validate checks the request's cookie and header tokens. Both must be
// present and equal byte-for-byte; the compare is constant-time.
func (g *Guard) Validate(c *gin.Context) error {
	if g.skipValidation {
		return nil
	}
	cookieToken, errCookie := c.Cookie(CookieName)
	if errCookie != nil || cookieToken == "" {
		return ErrTokenMissing
	}
	headerToken := c.GetHeader(HeaderName)
	if headerToken == "" {
		return ErrTokenMissing
	}
	if subtle.ConstantTimeCompare([]byte(cookieToken), []byte(headerToken)) != 1 {
		return ErrTokenMismatch
	}
	return nil
}
