package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"cogi/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// TestPassword is the plaintext password of every fixture user. It passes
// the strong password rules.
const TestPassword = "Passw0rd!"

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates a confirmed user with a hashed password and unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	email := fmt.Sprintf("user%d@test.com", nextID())
	return CreateTestUserWithEmail(t, db, email)
}

// CreateTestUserWithEmail creates a confirmed user with the given email.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	return createUser(t, db, email, true)
}

// CreateUnconfirmedUser creates a user that has not confirmed their email.
func CreateUnconfirmedUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	return createUser(t, db, email, false)
}

func createUser(t *testing.T, db *gorm.DB, email string, confirmed bool) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	dob := time.Date(1995, time.June, 15, 0, 0, 0, 0, time.UTC)
	user := &models.User{
		Email:       email,
		Password:    string(hash),
		FirstName:   "Test",
		LastName:    "User",
		Gender:      "other",
		DateOfBirth: &dob,
		Confirmed:   confirmed,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestThread creates an empty thread for the user.
func CreateTestThread(t *testing.T, db *gorm.DB, userID string, title *string) *models.Thread {
	t.Helper()

	now := time.Now()
	thread := &models.Thread{
		Base:          models.Base{CreatedAt: now},
		UserID:        userID,
		Title:         title,
		LastMessageAt: now,
	}
	if err := db.Create(thread).Error; err != nil {
		t.Fatalf("failed to create test thread: %v", err)
	}
	return thread
}

// CreateTestMessage appends a message to a thread using its next sequence number.
func CreateTestMessage(t *testing.T, db *gorm.DB, thread *models.Thread, sender models.Sender, body string) *models.Message {
	t.Helper()

	at := time.Now()
	msg := &models.Message{
		ThreadID:  thread.ID,
		UserID:    thread.UserID,
		Seq:       thread.NextSeq,
		Sender:    sender,
		Body:      body,
		CreatedAt: at,
	}
	if err := db.Create(msg).Error; err != nil {
		t.Fatalf("failed to create test message: %v", err)
	}
	thread.NextSeq++
	thread.LastMessageAt = at
	if err := db.Model(thread).Updates(map[string]interface{}{
		"next_seq":        thread.NextSeq,
		"last_message_at": at,
	}).Error; err != nil {
		t.Fatalf("failed to update test thread: %v", err)
	}
	return msg
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
