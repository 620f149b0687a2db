package scanner

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/approval-sentinel/internal/logging"
)

// TickRunner runs one scan pass
type TickRunner interface {
	ScanTick(ctx context.Context) error
}

// Worker drives the scanner on a fixed interval. Ticks fire on wall-clock
// cadence; if a pass is still running when the next tick fires, that tick
// is skipped rather than queued, so at most one pass runs at a time.
type Worker struct {
	scanner  TickRunner
	interval time.Duration
	inTick   atomic.Bool
	running  bool
	mu       sync.Mutex
	stopCh   chan struct{}
	doneCh   chan struct{}
	log      *logging.Logger
}

// NewWorker creates a scan worker with the given tick interval
func NewWorker(scanner TickRunner, interval time.Duration, log *logging.Logger) (*Worker, error) {
	if scanner == nil {
		return nil, fmt.Errorf("scanner cannot be nil")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %v", interval)
	}

	return &Worker{
		scanner:  scanner,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		log:      log.Named("scan-worker"),
	}, nil
}

// Start launches the tick loop. The first pass runs immediately.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("scan worker is already running")
	}
	w.running = true
	w.mu.Unlock()

	w.log.WithField("interval", w.interval.String()).Info("starting scan worker")

	go w.loop(ctx)
	return nil
}

// Stop signals the loop and waits for the in-flight pass to finish.
// The running flag is cleared inside the guard so only one caller ever
// closes stopCh.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return fmt.Errorf("scan worker is not running")
	}
	w.running = false
	w.mu.Unlock()

	w.log.Info("stopping scan worker")
	close(w.stopCh)

	select {
	case <-w.doneCh:
		w.log.Info("scan worker stopped")
	case <-ctx.Done():
		w.log.Warn("scan worker stop timed out")
		return ctx.Err()
	case <-time.After(30 * time.Second):
		return fmt.Errorf("stop timeout")
	}

	return nil
}

func (w *Worker) loop(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			w.log.Info("context cancelled")
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

// tick runs one scan pass unless the previous one is still in flight
func (w *Worker) tick(ctx context.Context) {
	if !w.inTick.CompareAndSwap(false, true) {
		w.log.Warn("previous scan pass still running, skipping tick")
		return
	}
	defer w.inTick.Store(false)

	start := time.Now()
	if err := w.scanner.ScanTick(ctx); err != nil {
		w.log.WithError(err).Error("scan pass failed")
		return
	}
	w.log.WithField("elapsed", time.Since(start).String()).Debug("scan pass complete")
}
