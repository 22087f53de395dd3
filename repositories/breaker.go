package repositories

import (
	"chat-pipeline/contract"
	"chat-pipeline/domain"
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

var _ contract.AuditStore = (*BreakerStore)(nil)

type BreakerSettings struct {
	MaxFailures uint32
	OpenTimeout time.Duration
}

// BreakerStore stops calling a failing store for a while.
// While open, Append fails immediately and the audit workers drop the record
// without waiting for the write timeout.
type BreakerStore struct {
	store   contract.AuditStore
	breaker *gobreaker.CircuitBreaker[struct{}]
}

func NewBreakerStore(name string, store contract.AuditStore, settings BreakerSettings, log *slog.Logger) *BreakerStore {
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Audit store breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return &BreakerStore{store: store, breaker: cb}
}

func (b *BreakerStore) Append(ctx context.Context, record domain.AuditRecord) error {
	_, err := b.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, b.store.Append(ctx, record)
	})
	return err
}

func (b *BreakerStore) State() gobreaker.State {
	return b.breaker.State()
}
