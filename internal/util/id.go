package util

import "github.com/google/uuid"

// NewID returns a fresh unique identifier for sessions, generations,
// and blob paths.
func NewID() string {
	return uuid.NewString()
}
