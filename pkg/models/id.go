package models

import "github.com/google/uuid"

// NewID returns a new random identifier for projects, plans, tasks and notes.
func NewID() string {
	return uuid.New().String()
}
