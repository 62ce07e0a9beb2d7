package worker

import (
	"context"
	"log/slog"
	"time"
)

// reclaimLoop periodically sweeps processing jobs whose claim outlived the
// stale threshold. Detached write-backs cover a graceful shutdown; this loop
// covers the worker that never got to write back at all (crash, OOM kill).
// It runs once at startup so a restart immediately recovers its own orphans.
func (w *Worker) reclaimLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.reclaimInterval)
	defer ticker.Stop()

	w.reclaimOnce(ctx)

	for {
		select {
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.reclaimOnce(ctx)
		}
	}
}

func (w *Worker) reclaimOnce(ctx context.Context) {
	reclaimed, err := w.store.ReclaimStale(ctx, w.staleAfter)
	if err != nil {
		w.logger.Error("Failed to reclaim stale jobs",
			slog.Any("error", err),
		)
		return
	}

	if reclaimed > 0 {
		w.logger.Warn("Stale claims recovered",
			slog.Int64("count", reclaimed),
			slog.Duration("stale_after", w.staleAfter),
		)
	}
}
