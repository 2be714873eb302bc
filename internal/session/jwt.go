package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lumenplan/chatgate/internal/config"
	"github.com/lumenplan/chatgate/internal/models"
	"github.com/lumenplan/chatgate/internal/security"
	"gorm.io/gorm"
)

// refreshThreshold triggers a refresh when less than this much validity
// remains on the session token.
const refreshThreshold = 15 * time.Minute

// JWTProvider implements Provider with HMAC session tokens and database
// user lookups.
type JWTProvider struct {
	db     *gorm.DB
	secret string
	expiry time.Duration
	nowFn  func() time.Time
}

// NewJWTProvider constructs a JWTProvider.
func NewJWTProvider(db *gorm.DB, cfg config.JWTConfig) *JWTProvider {
	return &JWTProvider{
		db:     db,
		secret: cfg.Secret,
		expiry: cfg.Expiry,
		nowFn:  time.Now,
	}
}

// CurrentUser resolves the identity for a session token. Invalid or
// expired tokens and unknown or disabled users all resolve to no session.
func (p *JWTProvider) CurrentUser(ctx context.Context, token string) (*Identity, error) {
	claims, errParse := security.ParseSessionToken(p.secret, token)
	if errParse != nil {
		return nil, nil
	}
	var user models.User
	if errFind := p.db.WithContext(ctx).First(&user, claims.UserID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("session: load user: %w", errFind)
	}
	if !user.Active {
		return nil, nil
	}
	return &Identity{UserID: user.ID, Username: user.Username}, nil
}

// Refresh mints replacement artifacts when the token expires within the
// refresh threshold.
func (p *JWTProvider) Refresh(_ context.Context, token string) (*Artifacts, error) {
	claims, errParse := security.ParseSessionToken(p.secret, token)
	if errParse != nil {
		return nil, nil
	}
	now := p.nowFn().UTC()
	if claims.ExpiresAt == nil || claims.ExpiresAt.Time.Sub(now) > refreshThreshold {
		return nil, nil
	}
	refreshed, errMint := security.MintSessionToken(p.secret, claims.UserID, now, p.expiry)
	if errMint != nil {
		return nil, fmt.Errorf("session: refresh token: %w", errMint)
	}
	return &Artifacts{Token: refreshed, ExpiresAt: now.Add(p.expiry)}, nil
}
