package models

import "github.com/google/uuid"

// NewID returns a new opaque identifier.
func NewID() string {
	return uuid.NewString()
}

func ensureID(id *string) {
	if *id == "" {
		*id = NewID()
	}
}
