package utils

import (
	"github.com/google/uuid"
)

// GenerateID returns a random request ID.
func GenerateID() string {
	return uuid.NewString()
}

// ShortID returns the first block of a fresh request ID, for log lines and file names.
func ShortID() string {
	id := uuid.New()
	return id.String()[:8]
}
