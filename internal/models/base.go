package models

import (
	"time"

	"cogi/internal/uuid"

	"gorm.io/gorm"
)

// Base contains common columns for UUID-keyed tables
type Base struct {
	ID        string    `gorm:"size:36;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New()
	}
	return nil
}

// All lists every model managed by AutoMigrate on mysql and sqlite.
// Postgres schemas are managed by the SQL files in migrations/.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Thread{},
		&Message{},
		&Feedback{},
		&Subscriber{},
		&AuditLog{},
	}
}
