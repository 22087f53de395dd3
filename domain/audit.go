package domain

import (
	"time"

	"github.com/google/uuid"
)

// GlobalChannel is the only channel the pipeline writes to.
const GlobalChannel = "global"

// AuditRecord is one durable chat event, normal or filtered.
// Body always carries the raw body as typed by the sender.
type AuditRecord struct {
	ID         uuid.UUID
	ServerTag  string
	Channel    string
	SenderID   uuid.UUID
	SenderName string
	Body       string
	Filtered   bool
	Lang       string
	Timestamp  time.Time
}
