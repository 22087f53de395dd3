package repositories

import (
	"chat-pipeline/contract"
	"chat-pipeline/domain"
	"chat-pipeline/errors"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

var _ contract.AuditStore = BadgerAuditRepository{}

const auditPrefix = "audit"

type BadgerAuditRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewBadgerAuditRepository(db *badger.DB, log *slog.Logger) BadgerAuditRepository {
	return BadgerAuditRepository{db: db, log: log}
}

// Append persists an audit record in BadgerDB, one transaction per record.
// The key is formatted as "audit:{server}:{channel}:{timestamp_padded}:{sender}:{filtered}:{id}" to:
//  1. Keep the rows of a server and channel sorted by time, thanks to the 19-digit zero padding.
//  2. Keep filtered rows distinguishable without decoding the value.
//  3. Never overwrite a row when a sender posts twice in the same nanosecond, the record id
//     breaks the tie.
//
// Server tag and channel are free text, a ':' in either is refused rather than escaped.
func (r BadgerAuditRepository) Append(ctx context.Context, record domain.AuditRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.Contains(record.ServerTag, ":") || strings.Contains(record.Channel, ":") {
		return fmt.Errorf("server %q, channel %q: %w", record.ServerTag, record.Channel, errors.ErrInvalidKey)
	}
	key := auditKey(record)
	value := encodeRecord(record)
	if err := r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	}); err != nil {
		return err
	}
	r.log.Debug("Audit row written", "key", string(key), "size", len(value))
	return nil
}

func auditKey(record domain.AuditRecord) []byte {
	return fmt.Appendf(nil, "%s:%s:%s:%019d:%s:%d:%s",
		auditPrefix,
		record.ServerTag,
		record.Channel,
		record.Timestamp.UnixNano(),
		record.SenderID,
		filteredFlag(record.Filtered),
		record.ID,
	)
}

func filteredFlag(filtered bool) int {
	if filtered {
		return 1
	}
	return 0
}
