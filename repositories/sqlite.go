package repositories

import (
	"chat-pipeline/contract"
	"chat-pipeline/domain"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

var _ contract.AuditStore = (*SQLiteAuditRepository)(nil)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS chat_logs (
	id         TEXT PRIMARY KEY,
	server     TEXT NOT NULL,
	channel    TEXT NOT NULL,
	uuid       TEXT NOT NULL,
	username   TEXT NOT NULL,
	message    TEXT NOT NULL,
	filtered   INTEGER NOT NULL DEFAULT 0,
	lang       TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS chat_logs_by_time ON chat_logs (server, channel, created_at);
`

const sqliteInsert = `INSERT INTO chat_logs (id, server, channel, uuid, username, message, filtered, lang, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

// SQLiteAuditRepository keeps the audit trail in a single-file chat_logs table.
type SQLiteAuditRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// OpenSQLiteAuditRepository opens path and creates the table when missing.
func OpenSQLiteAuditRepository(path string, log *slog.Logger) (*SQLiteAuditRepository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Single writer, concurrent appends wait on the pool
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create chat_logs: %w", err)
	}
	return &SQLiteAuditRepository{db: db, log: log}, nil
}

func (r *SQLiteAuditRepository) Append(ctx context.Context, record domain.AuditRecord) error {
	_, err := r.db.ExecContext(ctx, sqliteInsert,
		record.ID.String(),
		record.ServerTag,
		record.Channel,
		record.SenderID.String(),
		record.SenderName,
		record.Body,
		filteredFlag(record.Filtered),
		record.Lang,
		record.Timestamp.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert chat_logs: %w", err)
	}
	r.log.Debug("Audit row inserted", "table", "chat_logs", "id", record.ID, "filtered", record.Filtered)
	return nil
}

func (r *SQLiteAuditRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}
