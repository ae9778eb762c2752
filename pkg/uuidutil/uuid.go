// Package uuidutil generates identifiers for hook events.
package uuidutil

import "github.com/google/uuid"

// NewV7 returns a time-ordered UUID v7 string, so event ids sort by creation.
func NewV7() string {
	return uuid.Must(uuid.NewV7()).String()
}
