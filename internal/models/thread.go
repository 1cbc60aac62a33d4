package models

import (
	"time"

	"cogi/internal/uuid"

	"gorm.io/gorm"
)

// Sender identifies who wrote a message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Thread is a titled conversation owned by one user. CreatedAt is the
// timestamp of its first message and LastMessageAt of its latest one.
type Thread struct {
	Base
	UserID        string    `gorm:"size:36;not null;index:idx_threads_user_activity,priority:1" json:"user_id"`
	Title         *string   `gorm:"size:255" json:"title"`
	LastMessageAt time.Time `gorm:"not null;index:idx_threads_user_activity,priority:2" json:"last_message_at"`
	NextSeq       int64     `gorm:"not null;default:0" json:"-"`
	Messages      []Message `gorm:"foreignKey:ThreadID;constraint:OnDelete:CASCADE" json:"-"`
}

// Message is one immutable chat line. Within a thread messages are ordered
// by (CreatedAt, Seq); Seq is unique per thread.
type Message struct {
	ID        string    `gorm:"size:36;primaryKey" json:"id"`
	ThreadID  string    `gorm:"size:36;not null;uniqueIndex:idx_messages_thread_seq,priority:1" json:"thread_id"`
	UserID    string    `gorm:"size:36;not null;index" json:"-"`
	Seq       int64     `gorm:"not null;uniqueIndex:idx_messages_thread_seq,priority:2" json:"seq"`
	Sender    Sender    `gorm:"size:16;not null" json:"sender"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

// BeforeCreate hook generates a UUIDv7 for new messages
func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New()
	}
	return nil
}
