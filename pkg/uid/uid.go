// Package uid issues identifiers for inventory items, events and notifications.
package uid

import "github.com/google/uuid"

// New returns a time-ordered UUIDv7 string. Sweeps page by ID, so newer rows sort last.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// IsValid checks if a string is a valid UUID.
func IsValid(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
