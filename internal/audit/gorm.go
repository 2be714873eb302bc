package audit

import (
	"context"

	"github.com/lumenplan/chatgate/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GormSink appends audit events to the audit_logs table. Write failures
// are logged and swallowed; they never alter the primary response.
type GormSink struct {
	db *gorm.DB
}

// NewGormSink constructs a GormSink.
func NewGormSink(db *gorm.DB) *GormSink {
	return &GormSink{db: db}
}

// Record implements Sink.
func (s *GormSink) Record(ctx context.Context, event Event) {
	if s == nil || s.db == nil {
		return
	}
	row := models.AuditLog{
		Action:    string(event.Action),
		Identity:  event.Identity,
		Resource:  event.Resource,
		SourceIP:  event.SourceIP,
		UserAgent: event.UserAgent,
		CreatedAt: event.At,
	}
	if len(event.Detail) > 0 {
		row.Detail = datatypes.JSONMap(event.Detail)
	}
	if errCreate := s.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
		log.WithError(errCreate).Warn("audit: record failed")
	}
}
