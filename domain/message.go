// Package domain contains core concepts of the chat pipeline.
// This file defines inbound message events and their rendered form.
// Events are immutable and owned by a single pipeline pass.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// MessageEvent represents one raw chat message received from a sender.
type MessageEvent struct {
	SenderID           uuid.UUID
	SenderName         string
	SenderCapabilities CapabilitySet
	RawBody            string
	ServerTag          string
	ReceivedAt         time.Time
}

// RenderedMessage is the delivery-ready text of one pipeline pass.
type RenderedMessage struct {
	Text    string
	Blocked bool
	// Rule names the filter rule which blocked the message, empty when clean.
	Rule string
}
