package models

import "time"

// RateLimitWindow is a fixed-window request counter for one identity.
// Windows are keyed by the wall-clock hour boundary they start at.
type RateLimitWindow struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Identity    string    `gorm:"type:text;not null;uniqueIndex:idx_rlw_identity_window"` // Limiter key.
	WindowStart time.Time `gorm:"not null;uniqueIndex:idx_rlw_identity_window"`           // Window hour boundary (UTC).
	Count       int       `gorm:"not null;default:0"`                                     // Admitted requests in the window.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
