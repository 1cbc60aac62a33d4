// Package uuid generates the time-ordered identifiers used as primary keys
// for users, threads and messages.
package uuid

import (
	googleuuid "github.com/google/uuid"
)

// New generates a new UUIDv7.
//
// UUIDv7 carries a 48-bit millisecond Unix timestamp in its high bits followed
// by a monotonic counter and random data, so identifiers created later by the
// same process sort after earlier ones. Thread ids rely on this for stable
// ordering when two threads share a timestamp.
func New() string {
	id, err := googleuuid.NewV7()
	if err != nil {
		// Fallback to UUIDv4 if the random source fails
		return googleuuid.New().String()
	}
	return id.String()
}

// Parse validates and normalizes a UUID string.
func Parse(s string) (string, error) {
	parsed, err := googleuuid.Parse(s)
	if err != nil {
		return "", err
	}
	return parsed.String(), nil
}

// IsValid checks if a string is a valid UUID
func IsValid(s string) bool {
	_, err := googleuuid.Parse(s)
	return err == nil
}
