package ai

import (
	"context"
	"log/slog"
	"time"

	"github.com/kiranshivaraju/contractlens/internal/cache"
	"github.com/kiranshivaraju/contractlens/internal/store"
)

// StaleAnalysisMessage is recorded on documents failed by the Reconciler.
const StaleAnalysisMessage = "analysis timed out; retry to re-run"

// Reconciler fails documents left in analyzing by a crash or a lost task.
type Reconciler struct {
	store      store.Store
	cache      cache.Cache
	staleAfter time.Duration
	interval   time.Duration
	now        func() time.Time
}

func NewReconciler(st store.Store, ca cache.Cache, staleAfter, interval time.Duration) *Reconciler {
	return &Reconciler{
		store:      st,
		cache:      ca,
		staleAfter: staleAfter,
		interval:   interval,
		now:        time.Now,
	}
}

// Sweep fails every analyzing document not updated within staleAfter and
// returns how many were failed.
func (r *Reconciler) Sweep(ctx context.Context) (int, error) {
	cutoff := r.now().Add(-r.staleAfter)
	ids, err := r.store.FailStaleDocuments(ctx, cutoff, StaleAnalysisMessage)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		if err := r.cache.Delete(ctx, cache.DocumentStatusKey(id)); err != nil {
			slog.Warn("failed to drop cached status", "document_id", id, "error", err)
		}
	}
	if len(ids) > 0 {
		slog.Warn("failed stale analyses", "count", len(ids), "cutoff", cutoff)
	}
	return len(ids), nil
}

// Run sweeps every interval until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	slog.Info("reconciler started", "interval", r.interval, "stale_after", r.staleAfter)
	for {
		if _, err := r.Sweep(ctx); err != nil && ctx.Err() == nil {
			slog.Error("stale analysis sweep failed", "error", err)
		}
		select {
		case <-ctx.Done():
			slog.Info("reconciler stopped")
			return
		case <-ticker.C:
		}
	}
}
