package repositories

import (
	"chat-pipeline/contract"
	"chat-pipeline/domain"
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ contract.AuditStore = PostgresAuditRepository{}

// DBTX is the part of *pgxpool.Pool and pgx.Tx the repository needs.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

const PostgresSchema = `
CREATE TABLE IF NOT EXISTS chat_logs (
	id         UUID PRIMARY KEY,
	server     TEXT NOT NULL,
	channel    TEXT NOT NULL,
	uuid       UUID NOT NULL,
	username   TEXT NOT NULL,
	message    TEXT NOT NULL,
	filtered   BOOLEAN NOT NULL DEFAULT FALSE,
	lang       TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS chat_logs_by_time ON chat_logs (server, channel, created_at);
`

const postgresInsert = `INSERT INTO chat_logs (id, server, channel, uuid, username, message, filtered, lang, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

type PostgresAuditRepository struct {
	db  DBTX
	log *slog.Logger
}

func NewPostgresAuditRepository(db DBTX, log *slog.Logger) PostgresAuditRepository {
	return PostgresAuditRepository{db: db, log: log}
}

// OpenPostgres connects a pool and creates the chat_logs table when missing.
func OpenPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, PostgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create chat_logs: %w", err)
	}
	return pool, nil
}

func (r PostgresAuditRepository) Append(ctx context.Context, record domain.AuditRecord) error {
	tag, err := r.db.Exec(ctx, postgresInsert,
		record.ID.String(),
		record.ServerTag,
		record.Channel,
		record.SenderID.String(),
		record.SenderName,
		record.Body,
		record.Filtered,
		record.Lang,
		record.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert chat_logs: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("insert chat_logs: %d rows affected", tag.RowsAffected())
	}
	return nil
}
