package security

import "github.com/google/uuid"

// NewAccountID creates a new opaque account identifier
func NewAccountID() string {
	return uuid.New().String()
}
