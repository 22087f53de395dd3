package runtime

import (
	"chat-pipeline/contract"
	"chat-pipeline/runtime/workers"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"
)

type Settings struct {
	NumberOfWorkers      int
	WriteTimeout         time.Duration
	MetricInterval       time.Duration
	LowCapacityThreshold int
	// DrainTimeout bounds how long Stop waits for queued records to be written, zero skips the wait.
	DrainTimeout time.Duration
}

// Orchestrator owns the audit workers and their supervision.
// The pipeline itself runs on the callers' goroutines, only persistence is supervised.
type Orchestrator struct {
	mu         sync.Mutex
	log        *slog.Logger
	supervisor contract.ISupervisor
	audit      *AuditLogger
	store      contract.AuditStore
	settings   Settings
	started    bool
	writers    []*workers.AuditWorker
}

func NewOrchestrator(log *slog.Logger, supervisor contract.ISupervisor, audit *AuditLogger,
	store contract.AuditStore, settings Settings) *Orchestrator {
	return &Orchestrator{
		log:        log,
		supervisor: supervisor,
		audit:      audit,
		store:      store,
		settings:   settings,
	}
}

// Start registers the workers and blocks until the supervisor returns.
func (o *Orchestrator) Start(ctx context.Context) error {
	// Workers are built outside of the lock
	auditWorkers := o.prepareAuditWorkers()
	capacityWorker := workers.NewChannelCapacityWorker(o.log,
		[]workers.NamedChannel{{Name: "audit", Channel: o.audit.Queue()}},
		o.settings.MetricInterval, o.settings.LowCapacityThreshold)

	o.mu.Lock()
	if !o.started {
		o.supervisor.Add(lo.Map(auditWorkers, func(w *workers.AuditWorker, _ int) contract.Worker { return w })...)
		o.supervisor.Add(capacityWorker)
		o.writers = auditWorkers
		o.started = true
	}
	o.mu.Unlock()

	o.log.Info("Starting orchestrator and all supervised workers", "audit_workers", len(auditWorkers))
	o.supervisor.Run(ctx)
	return nil
}

func (o *Orchestrator) prepareAuditWorkers() []*workers.AuditWorker {
	res := make([]*workers.AuditWorker, 0, o.settings.NumberOfWorkers)
	for i := 0; i < o.settings.NumberOfWorkers; i++ {
		res = append(res, workers.NewAuditWorker(o.audit.Queue(), o.store, o.settings.WriteTimeout, o.log))
	}
	return res
}

// Stop refuses new audit records first, waits up to DrainTimeout for the workers to
// write what is queued, then cancels the supervised context.
// Records still queued when the context is canceled are logged as lost.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.audit.Close()
	o.awaitDrain()
	o.supervisor.Stop()
	o.log.Debug("Audit queue closed", "dropped", o.audit.Dropped())
}

func (o *Orchestrator) awaitDrain() {
	o.mu.Lock()
	writers := o.writers
	o.mu.Unlock()
	if len(writers) == 0 || o.settings.DrainTimeout <= 0 {
		return
	}
	deadline := time.NewTimer(o.settings.DrainTimeout)
	defer deadline.Stop()
	for _, w := range writers {
		select {
		case <-w.Drained():
		case <-deadline.C:
			o.log.Warn("Audit queue not drained in time", "pending", len(o.audit.Queue()))
			return
		}
	}
}
