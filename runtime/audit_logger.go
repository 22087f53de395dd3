package runtime

import (
	"chat-pipeline/contract"
	"chat-pipeline/domain"
	"chat-pipeline/errors"
	"log/slog"
	"sync"
	"sync/atomic"
)

var _ contract.AuditSubmitter = (*AuditLogger)(nil)

// AuditLogger hands audit records over to the audit workers through a bounded queue.
// Submit never blocks: a full queue or a closed logger drops the record and logs it.
type AuditLogger struct {
	mu      sync.RWMutex
	closed  bool
	queue   chan domain.AuditRecord
	dropped atomic.Uint64
	log     *slog.Logger
}

func NewAuditLogger(bufferSize int, log *slog.Logger) *AuditLogger {
	return &AuditLogger{queue: make(chan domain.AuditRecord, bufferSize), log: log}
}

func (a *AuditLogger) Submit(record domain.AuditRecord) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		a.drop(record, errors.ErrAuditClosed)
		return
	}
	select {
	case a.queue <- record:
	default:
		a.drop(record, errors.ErrAuditQueueFull)
	}
}

// Queue is consumed by the audit workers, it is closed by Close.
func (a *AuditLogger) Queue() <-chan domain.AuditRecord {
	return a.queue
}

// Close stops accepting records. Records already queued stay readable.
func (a *AuditLogger) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.closed = true
	close(a.queue)
}

// Dropped counts the records refused by Submit.
func (a *AuditLogger) Dropped() uint64 {
	return a.dropped.Load()
}

func (a *AuditLogger) drop(record domain.AuditRecord, reason error) {
	a.dropped.Add(1)
	a.log.Warn(reason.Error(),
		"server", record.ServerTag,
		"sender", record.SenderName,
		"uuid", record.SenderID,
		"filtered", record.Filtered)
}
