package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lumenplan/chatgate/internal/audit"
	"github.com/lumenplan/chatgate/internal/config"
	"github.com/lumenplan/chatgate/internal/gate"
	"github.com/lumenplan/chatgate/internal/models"
	"github.com/lumenplan/chatgate/internal/security"
	"github.com/lumenplan/chatgate/internal/session"
	"gorm.io/gorm"
)

// AuthHandler serves login, logout, and session endpoints.
type AuthHandler struct {
	db           *gorm.DB
	jwtCfg       config.JWTConfig
	sink         audit.Sink
	secureCookie bool
	nowFn        func() time.Time
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(db *gorm.DB, jwtCfg config.JWTConfig, sink audit.Sink, secureCookie bool) *AuthHandler {
	if sink == nil {
		sink = audit.NopSink{}
	}
	return &AuthHandler{
		db:           db,
		jwtCfg:       jwtCfg,
		sink:         sink,
		secureCookie: secureCookie,
		nowFn:        time.Now,
	}
}

// loginRequest holds the login payload.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login verifies credentials and sets the session cookie.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		gate.Deny(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid login payload")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		gate.Deny(c, http.StatusBadRequest, "INVALID_REQUEST", "username and password are required")
		return
	}

	var user models.User
	errFind := h.db.WithContext(c.Request.Context()).
		Where("username = ?", req.Username).
		Take(&user).Error
	if errFind != nil && !errors.Is(errFind, gorm.ErrRecordNotFound) {
		gate.Deny(c, http.StatusInternalServerError, "INTERNAL_ERROR", "login failed")
		return
	}
	if errFind != nil || !user.Active || !security.VerifyPassword(user.Password, req.Password) {
		h.emit(c, audit.ActionLoginFailed, session.Anonymous, map[string]any{"username": req.Username})
		gate.Deny(c, http.StatusUnauthorized, gate.CodeUnauthorized, "invalid credentials")
		return
	}

	now := h.nowFn().UTC()
	token, errMint := security.MintSessionToken(h.jwtCfg.Secret, user.ID, now, h.jwtCfg.Expiry)
	if errMint != nil {
		gate.Deny(c, http.StatusInternalServerError, "INTERNAL_ERROR", "login failed")
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(session.CookieName, token, int(h.jwtCfg.Expiry/time.Second), "/", "", h.secureCookie, true)

	h.emit(c, audit.ActionLogin, user.Username, nil)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user": gin.H{
			"id":       user.ID,
			"username": user.Username,
			"email":    user.Email,
		},
	})
}

// Logout clears the session cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	result := gate.SessionFrom(c)
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(session.CookieName, "", -1, "/", "", h.secureCookie, true)
	h.emit(c, audit.ActionLogout, result.Key(), nil)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Session returns the identity resolved by the gate for this request.
func (h *AuthHandler) Session(c *gin.Context) {
	result := gate.SessionFrom(c)
	if !result.Authenticated() {
		c.JSON(http.StatusOK, gin.H{"success": true, "authenticated": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"authenticated": true,
		"user": gin.H{
			"id":       result.Identity.UserID,
			"username": result.Identity.Username,
		},
	})
}

func (h *AuthHandler) emit(c *gin.Context, action audit.Action, identity string, detail map[string]any) {
	h.sink.Record(c.Request.Context(), audit.Event{
		Action:    action,
		Identity:  identity,
		Detail:    detail,
		SourceIP:  c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
}
