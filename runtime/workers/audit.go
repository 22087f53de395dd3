package workers

import (
	"chat-pipeline/contract"
	"chat-pipeline/domain"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/abadojack/whatlanggo"
)

var _ contract.Worker = (*AuditWorker)(nil)

// AuditWorker persists audit records taken from the audit queue.
// A failed write is logged and the record dropped, there is no retry.
// On shutdown the records still queued are logged as lost.
type AuditWorker struct {
	queue        <-chan domain.AuditRecord
	store        contract.AuditStore
	writeTimeout time.Duration
	log          *slog.Logger
	drained      chan struct{}
	once         sync.Once
}

func NewAuditWorker(queue <-chan domain.AuditRecord, store contract.AuditStore,
	writeTimeout time.Duration, log *slog.Logger) *AuditWorker {
	return &AuditWorker{
		queue:        queue,
		store:        store,
		writeTimeout: writeTimeout,
		log:          log,
		drained:      make(chan struct{}),
	}
}

// Drained is closed once the worker has seen the queue closed and empty.
func (w *AuditWorker) Drained() <-chan struct{} {
	return w.drained
}

func (w *AuditWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			w.log.Debug("Stopping worker")
			return ctx.Err()
		case record, ok := <-w.queue:
			if !ok {
				w.log.Debug("Channel is closed")
				w.once.Do(func() { close(w.drained) })
				return nil
			}
			w.write(ctx, record)
		}
	}
}

func (w *AuditWorker) write(ctx context.Context, record domain.AuditRecord) {
	if record.Lang == "" {
		record.Lang = detectLang(record.Body)
	}
	writeCtx, cancel := context.WithTimeout(ctx, w.writeTimeout)
	defer cancel()

	start := time.Now()
	if err := w.store.Append(writeCtx, record); err != nil {
		w.lost(record, err)
		return
	}
	w.log.Debug("Audit record stored",
		"sender", record.SenderName,
		"filtered", record.Filtered,
		"latency_us", time.Since(start).Microseconds())
}

// drain empties the queue without blocking, each remaining record is lost.
func (w *AuditWorker) drain() {
	for {
		select {
		case record, ok := <-w.queue:
			if !ok {
				return
			}
			w.lost(record, context.Canceled)
		default:
			return
		}
	}
}

func (w *AuditWorker) lost(record domain.AuditRecord, err error) {
	w.log.Error("Audit record lost",
		"error", err,
		"server", record.ServerTag,
		"channel", record.Channel,
		"uuid", record.SenderID,
		"sender", record.SenderName,
		"filtered", record.Filtered,
		"message", record.Body)
}

func detectLang(body string) string {
	info := whatlanggo.Detect(body)
	if !info.IsReliable() {
		return ""
	}
	return info.Lang.Iso6391()
}
