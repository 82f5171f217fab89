package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gaming-platform/internal/config"
)

// Rebuilder recomputes the leaderboards from durable storage. The
// LeaderboardService satisfies it.
type Rebuilder interface {
	Rebuild(ctx context.Context) error
}

// RebuildWorker periodically rebuilds the leaderboards so the cache converges
// after missed updates or a Redis flush.
type RebuildWorker struct {
	boards  Rebuilder
	config  *config.SyncConfig
	logger  *slog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewRebuildWorker creates a rebuild worker.
func NewRebuildWorker(boards Rebuilder, cfg *config.SyncConfig, logger *slog.Logger) *RebuildWorker {
	return &RebuildWorker{
		boards: boards,
		config: cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start launches the background loop. Calling Start on a running worker is a
// no-op.
func (w *RebuildWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("rebuild worker started", "interval", w.config.Interval)

	go w.run(ctx)
	return nil
}

// Stop signals the loop and waits for it to finish.
func (w *RebuildWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("rebuild worker stopped")
	return nil
}

func (w *RebuildWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.rebuild(ctx)
		}
	}
}

func (w *RebuildWorker) rebuild(ctx context.Context) {
	start := time.Now()
	if err := w.boards.Rebuild(ctx); err != nil {
		w.logger.Error("rebuild cycle failed", "error", err)
		return
	}
	w.logger.Info("rebuild cycle completed", "duration", time.Since(start))
}

// IsRunning reports whether the loop is active.
func (w *RebuildWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// RunOnce triggers a single rebuild outside the schedule.
func (w *RebuildWorker) RunOnce(ctx context.Context) {
	w.rebuild(ctx)
}
