package repositories

import (
	"chat-pipeline/contract"
	"chat-pipeline/errors"
	"context"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

const (
	StoreBadger   = "badger"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

type StoreConfig struct {
	Kind        string
	BadgerPath  string
	SQLitePath  string
	PostgresDSN string
	Breaker     BreakerSettings
}

// OpenAuditStore opens the configured backend. The returned function releases it.
// A breaker wraps the backend when Breaker.MaxFailures is set.
func OpenAuditStore(ctx context.Context, config StoreConfig, log *slog.Logger) (contract.AuditStore, func(), error) {
	var (
		store   contract.AuditStore
		release func()
	)
	switch config.Kind {
	case StoreBadger:
		db, err := badger.Open(buildBadgerOpts(ctx, config.BadgerPath, log))
		if err != nil {
			return nil, nil, fmt.Errorf("database opening failed: %w", err)
		}
		store = NewBadgerAuditRepository(db, log)
		release = func() {
			log.Info("Closing BadgerDB...")
			_ = db.Close()
		}
	case StoreSQLite:
		repository, err := OpenSQLiteAuditRepository(config.SQLitePath, log)
		if err != nil {
			return nil, nil, err
		}
		store = repository
		release = func() {
			log.Info("Closing SQLite...")
			_ = repository.Close()
		}
	case StorePostgres:
		pool, err := OpenPostgres(ctx, config.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		store = NewPostgresAuditRepository(pool, log)
		release = func() {
			log.Info("Closing Postgres pool...")
			pool.Close()
		}
	default:
		return nil, nil, fmt.Errorf("%q: %w", config.Kind, errors.ErrUnknownStore)
	}

	if config.Breaker.MaxFailures > 0 {
		store = NewBreakerStore(config.Kind, store, config.Breaker, log)
	}
	log.Info("Audit store opened", "kind", config.Kind)
	return store, release, nil
}

func buildBadgerOpts(ctx context.Context, path string, log *slog.Logger) badger.Options {
	options := badger.DefaultOptions(path)
	if log.Enabled(ctx, slog.LevelDebug) {
		return options.WithLoggingLevel(badger.DEBUG)
	}
	return options.WithLoggingLevel(badger.WARNING)
}
