package errors

import "fmt"

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	// Configuration errors, fatal at startup.
	ErrEmptyFormats    = fmt.Errorf("no format has been declared")
	ErrNoDefaultFormat = fmt.Errorf("default format is not declared")
	ErrUnknownFormat   = fmt.Errorf("rule references an unknown format")
	ErrMissingBodySlot = fmt.Errorf("format must contain exactly one message placeholder")
	ErrInvalidRule     = fmt.Errorf("invalid filter rule")
	ErrEmptyWords      = fmt.Errorf("no words have been found")
	ErrUnknownStore    = fmt.Errorf("unknown audit store")

	// Runtime errors, recovered locally.
	ErrRecipientGone  = fmt.Errorf("recipient is no longer connected")
	ErrOutboundFull   = fmt.Errorf("recipient outbound buffer is full")
	ErrAuditQueueFull = fmt.Errorf("audit queue is full, record dropped")
	ErrAuditClosed    = fmt.Errorf("audit logger is closed, record dropped")
	ErrInvalidName    = fmt.Errorf("invalid participant name")
	ErrInvalidKey     = fmt.Errorf("key segment contains the ':' separator")
)
