package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/groundkit/groundkit/internal/domain"
)

// Runner drives ingestion with a fixed worker pool and a periodic
// refresh sweep that re-queues URL sources whose refresh interval has
// elapsed.
type Runner struct {
	svc     *Service
	queue   chan string
	workers int
	sweep   time.Duration
	logger  *zap.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
	once   sync.Once
}

// NewRunner creates a runner with the given worker count and refresh
// sweep interval. A zero sweep disables the refresh loop.
func NewRunner(svc *Service, workers int, sweep time.Duration, logger *zap.Logger) *Runner {
	if workers <= 0 {
		workers = 2
	}
	return &Runner{
		svc:     svc,
		queue:   make(chan string, 256),
		workers: workers,
		sweep:   sweep,
		logger:  logger,
	}
}

// Start launches the workers and the refresh loop. Sources left
// mid-pipeline by a previous process are returned to PENDING and
// re-queued before normal work begins.
func (r *Runner) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	r.recoverInterrupted(ctx)

	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.worker(ctx)
	}
	if r.sweep > 0 {
		r.wg.Add(1)
		go r.refreshLoop(ctx)
	}
	r.logger.Info("ingest runner started", zap.Int("workers", r.workers))
}

// Enqueue queues a source for ingestion. Returns false if the queue is
// full or the runner is stopped; the caller should surface a retryable
// error.
func (r *Runner) Enqueue(id string) bool {
	select {
	case r.queue <- id:
		return true
	default:
		r.logger.Warn("ingest queue full", zap.String("source_id", id))
		return false
	}
}

// Stop cancels in-flight work and waits for the workers to drain.
// In-progress runs stop at the next batch boundary; the partly written
// generation is cleaned up on the next successful run.
func (r *Runner) Stop() {
	r.once.Do(func() {
		if r.cancel != nil {
			r.cancel()
		}
		r.wg.Wait()
		r.logger.Info("ingest runner stopped")
	})
}

func (r *Runner) worker(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-r.queue:
			if err := r.svc.Ingest(ctx, id); err != nil {
				if errors.Is(err, domain.ErrIngestCancelled) {
					return
				}
				r.logger.Warn("ingestion failed",
					zap.String("source_id", id),
					zap.Error(err))
			}
		}
	}
}

// refreshLoop re-queues URL sources whose content may have changed.
func (r *Runner) refreshLoop(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.sweep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweepOnce(ctx)
		}
	}
}

func (r *Runner) sweepOnce(ctx context.Context) {
	sources, err := r.svc.sources.List(ctx)
	if err != nil {
		r.logger.Warn("refresh sweep failed", zap.Error(err))
		return
	}
	now := time.Now().UTC()
	for _, src := range sources {
		// PENDING sources older than one sweep interval lost their
		// enqueue (queue overflow, process restart); re-queue them.
		if src.Status == domain.StatePending {
			if now.Sub(src.UpdatedAt) >= r.sweep {
				r.Enqueue(src.ID)
			}
			continue
		}
		if src.Origin != domain.OriginURL || src.RefreshEvery <= 0 {
			continue
		}
		if src.Status != domain.StateReady {
			continue
		}
		if now.Sub(src.UpdatedAt) < src.RefreshEvery {
			continue
		}
		if err := r.svc.Refresh(ctx, src.ID); err != nil {
			r.logger.Warn("refresh reset failed",
				zap.String("source_id", src.ID),
				zap.Error(err))
			continue
		}
		r.Enqueue(src.ID)
	}
}

// recoverInterrupted scans for sources stranded by a previous process:
// mid-pipeline ones go back to PENDING via FAILED, and every PENDING
// source is re-queued since the old process took its queue with it.
func (r *Runner) recoverInterrupted(ctx context.Context) {
	sources, err := r.svc.sources.List(ctx)
	if err != nil {
		r.logger.Warn("startup recovery scan failed", zap.Error(err))
		return
	}
	for _, src := range sources {
		if src.Status.Terminal() {
			continue
		}
		if src.Status != domain.StatePending {
			if err := r.svc.Recover(ctx, src.ID); err != nil {
				r.logger.Warn("startup recovery failed",
					zap.String("source_id", src.ID),
					zap.String("state", string(src.Status)),
					zap.Error(err))
				continue
			}
			r.logger.Info("recovered interrupted source",
				zap.String("source_id", src.ID),
				zap.String("state", string(src.Status)))
		}
		r.Enqueue(src.ID)
	}
}
