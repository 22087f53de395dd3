//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-pipeline/domain"
	"context"
	"reflect"

	"github.com/google/uuid"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Recipient is a connected participant able to receive rendered text.
// Send must not block on the network.
type Recipient interface {
	ID() uuid.UUID
	Name() string
	Send(text string) error
}

// Directory is the externally owned set of connected participants.
type Directory interface {
	AllConnected() []Recipient
	ConnectedWithCapability(name string) []Recipient
	Get(id uuid.UUID) (Recipient, bool)
}

type PermissionChecker interface {
	HasCapability(p domain.Participant, name string) bool
}

// PlaceholderExpander substitutes external placeholders, once, after rendering.
type PlaceholderExpander interface {
	Expand(p domain.Participant, text string) string
}

// AuditStore is an append-only durable sink. Each Append is one atomic insert.
type AuditStore interface {
	Append(ctx context.Context, record domain.AuditRecord) error
}

type AuditSubmitter interface {
	Submit(record domain.AuditRecord)
}

// Console receives the plain text of every broadcast and filter event.
type Console interface {
	Broadcast(text string)
	Filtered(text string)
}
