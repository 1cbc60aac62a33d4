package services

import (
	"encoding/json"

	"gorm.io/gorm"

	"cogi/internal/logger"
	"cogi/internal/models"
)

// auditService appends security events to audit_logs.
type auditService struct {
	db *gorm.DB
}

// NewAuditService creates a new AuditServicer.
func NewAuditService(db *gorm.DB) AuditServicer {
	return &auditService{db: db}
}

// Log records an audit event. It is best effort: a failed write is logged
// and the calling operation carries on.
func (s *auditService) Log(event AuditEvent) {
	log := logger.Get()

	entry := &models.AuditLog{
		UserID:       event.UserID,
		Action:       event.Action,
		ResourceType: event.ResourceType,
		ResourceID:   event.ResourceID,
		IPAddress:    event.IPAddress,
	}
	if len(event.Changes) > 0 {
		data, err := json.Marshal(event.Changes)
		if err != nil {
			log.Errorw("failed to marshal audit log changes", "error", err, "action", event.Action)
			data = []byte("{}")
		}
		entry.Changes = string(data)
	}

	if err := s.db.Create(entry).Error; err != nil {
		log.Errorw("failed to create audit log entry",
			"error", err,
			"user_id", event.UserID,
			"action", event.Action,
			"resource_type", event.ResourceType,
			"resource_id", event.ResourceID,
		)
	}
}
