// Package session stores server-side login sessions.
//
// A session is created at login, refreshed on every authenticated request and
// discarded on logout or when its idle window has elapsed. Expiry is decided
// by the caller; stores only persist state.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when no session exists for an id.
var ErrNotFound = errors.New("session not found")

// Session is the server-side state bound to a client cookie or bearer id.
type Session struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Email          string    `json:"email"`
	ActiveThreadID string    `json:"active_thread_id,omitempty"`
	LastActivity   time.Time `json:"last_activity"`
	CreatedAt      time.Time `json:"created_at"`
}

// Store persists sessions by id. Touch and SetActiveThread update a single
// field so concurrent requests on one session do not overwrite each other;
// both return ErrNotFound for a missing session.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Touch(ctx context.Context, id string, at time.Time) error
	SetActiveThread(ctx context.Context, id, threadID string) error
	Delete(ctx context.Context, id string) error
}

// NewID returns a 256-bit random, URL-safe session id.
func NewID() (string, error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b[:]), nil
}

// clone returns a copy so callers never share a stored pointer.
func (s *Session) clone() *Session {
	cp := *s
	return &cp
}
