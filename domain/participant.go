// Package domain contains core concepts of the chat pipeline.
// This file defines Participant entities and related invariants.
// No runtime, network, or UI logic should be added here.
package domain

import "github.com/google/uuid"

// Participant is the identity capability checks and placeholder expansion are made against.
type Participant struct {
	ID   uuid.UUID
	Name string
}
