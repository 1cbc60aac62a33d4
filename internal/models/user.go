package models

import "time"

// User represents the user model in the database
type User struct {
	Base
	Email               string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Password            string     `gorm:"size:255;not null" json:"-"`
	FirstName           string     `gorm:"size:100" json:"first_name"`
	LastName            string     `gorm:"size:100" json:"last_name"`
	Gender              string     `gorm:"size:32" json:"gender,omitempty"`
	DateOfBirth         *time.Time `json:"date_of_birth,omitempty"`
	Confirmed           bool       `gorm:"not null;default:false" json:"confirmed"`
	ConfirmedAt         *time.Time `json:"confirmed_at,omitempty"`
	FailedLoginAttempts int        `gorm:"not null;default:0" json:"-"`
	LastLoginAt         *time.Time `json:"last_login_at,omitempty"`
}
