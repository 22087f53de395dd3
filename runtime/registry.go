package runtime

import (
	"chat-pipeline/contract"
	"chat-pipeline/domain"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

var _ contract.Directory = (*Registry)(nil)

// Registry is the in-memory participant directory.
// Sessions are kept in connection order, capability checks are delegated to the
// permission backend.
type Registry struct {
	mu       sync.RWMutex
	sessions []contract.Recipient
	index    map[uuid.UUID]int
	checker  contract.PermissionChecker
}

func NewRegistry(checker contract.PermissionChecker) *Registry {
	return &Registry{
		index:   make(map[uuid.UUID]int),
		checker: checker,
	}
}

// Subscribe registers a participant's connection.
// A participant connecting twice keeps a single session, the newest one.
func (r *Registry) Subscribe(recipient contract.Recipient) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i, ok := r.index[recipient.ID()]; ok {
		r.sessions[i] = recipient
		return
	}
	r.index[recipient.ID()] = len(r.sessions)
	r.sessions = append(r.sessions, recipient)
}

// Unsubscribe removes the session only if it is still the given one,
// a stale connection closing late never evicts its replacement.
func (r *Registry) Unsubscribe(recipient contract.Recipient) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.index[recipient.ID()]
	if !ok || r.sessions[i] != recipient {
		return
	}
	r.sessions = append(r.sessions[:i], r.sessions[i+1:]...)
	delete(r.index, recipient.ID())
	for j := i; j < len(r.sessions); j++ {
		r.index[r.sessions[j].ID()] = j
	}
}

func (r *Registry) AllConnected() []contract.Recipient {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]contract.Recipient(nil), r.sessions...)
}

func (r *Registry) ConnectedWithCapability(name string) []contract.Recipient {
	return lo.Filter(r.AllConnected(), func(recipient contract.Recipient, _ int) bool {
		return r.checker.HasCapability(domain.Participant{ID: recipient.ID(), Name: recipient.Name()}, name)
	})
}

func (r *Registry) Get(id uuid.UUID) (contract.Recipient, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[id]
	if !ok {
		return nil, false
	}
	return r.sessions[i], true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
