package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/protocol-service/internal/config"
	"github.com/spec-kit/protocol-service/internal/offline"
	"github.com/spec-kit/protocol-service/internal/service"
)

// SyncWorker drains the offline queue against the protocol store. Each
// pass is one reconnect attempt: it runs to completion, dead-letters
// permanent failures, and backs off when the store is still down.
type SyncWorker struct {
	queue     offline.Queue
	protocols *service.ProtocolService
	logger    *zap.Logger
	cfg       config.OfflineConfig
}

// NewSyncWorker constructs the worker.
func NewSyncWorker(queue offline.Queue, protocols *service.ProtocolService, logger *zap.Logger, cfg config.OfflineConfig) *SyncWorker {
	return &SyncWorker{queue: queue, protocols: protocols, logger: logger, cfg: cfg}
}

// Run loops until the context is cancelled.
func (w *SyncWorker) Run(ctx context.Context) {
	if w.queue == nil {
		return
	}
	ticker := time.NewTicker(w.cfg.DrainInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.DrainOnce(ctx)
		}
	}
}

// DrainOnce performs a single drain pass.
func (w *SyncWorker) DrainOnce(ctx context.Context) {
	result, err := w.queue.Drain(ctx, func(ctx context.Context, env offline.Envelope) error {
		submitCtx, cancel := context.WithTimeout(ctx, w.cfg.SubmitTimeout())
		defer cancel()
		return w.protocols.SubmitQueued(submitCtx, env)
	}, w.cfg.DrainBatchLimit)
	if err != nil {
		w.logger.Warn("offline drain aborted", zap.Error(err))
		return
	}
	if result.Submitted > 0 || result.DeadLettered > 0 {
		w.logger.Info("offline queue drained",
			zap.Int("submitted", result.Submitted),
			zap.Int("dead_lettered", result.DeadLettered),
			zap.Bool("stopped_on_transient", result.Stopped))
	}
}
