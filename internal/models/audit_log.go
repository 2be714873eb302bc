package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog is an append-only security event record. Rows are never updated
// or deleted by the application.
type AuditLog struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Action   string `gorm:"type:text;not null;index"` // Event action name.
	Identity string `gorm:"type:text;index"`          // Acting identity, "anonymous" is valid.
	Resource string `gorm:"type:text"`                // Optional resource reference.

	Detail datatypes.JSONMap `gorm:"type:json"` // Free-form event detail.

	SourceIP  string `gorm:"type:text"` // Client IP address.
	UserAgent string `gorm:"type:text"` // Client user agent.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Event timestamp.
}
