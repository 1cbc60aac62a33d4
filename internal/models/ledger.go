package models

import "time"

// Feedback is an append-only note left by a visitor.
type Feedback struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Message     string    `gorm:"type:text;not null" json:"message"`
	SubmittedAt time.Time `gorm:"not null;autoCreateTime" json:"submitted_at"`
}

// TableName keeps the legacy singular table name.
func (Feedback) TableName() string { return "feedback" }

// Subscriber is a newsletter subscription. Emails are stored lower-cased.
type Subscriber struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Email     string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	CreatedAt time.Time `json:"created_at"`
}
