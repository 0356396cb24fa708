// Package worker runs the background jobs of the server.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// PredictionLocker locks every open prediction whose fixture has started.
// service.PredictionService implements it.
type PredictionLocker interface {
	LockStarted(ctx context.Context) (int64, error)
}

// Locker periodically locks predictions on started fixtures. User edits
// re-check kickoff on their own, so the locker only keeps stored lock flags
// current for readers.
type Locker struct {
	preds     PredictionLocker
	interval  time.Duration
	timeout   time.Duration
	logger    *slog.Logger
	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

func NewLocker(preds PredictionLocker, interval time.Duration, logger *slog.Logger) *Locker {
	return &Locker{
		preds:    preds,
		interval: interval,
		timeout:  30 * time.Second,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start launches the loop. It runs one pass immediately and then one per
// interval. Calling Start more than once has no effect.
func (l *Locker) Start() {
	l.startOnce.Do(func() {
		l.logger.Info("starting prediction locker", slog.Duration("interval", l.interval))
		l.wg.Add(1)
		go l.run()
	})
}

// Stop ends the loop and waits for an in-flight pass to finish.
func (l *Locker) Stop() {
	l.stopOnce.Do(func() {
		l.logger.Info("shutting down prediction locker")
		close(l.done)
		l.wg.Wait()
	})
}

func (l *Locker) run() {
	defer l.wg.Done()

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		l.pass()

		select {
		case <-l.done:
			return
		case <-ticker.C:
		}
	}
}

func (l *Locker) pass() {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	// Stop cancels a pass stuck on the database.
	go func() {
		select {
		case <-l.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	n, err := l.preds.LockStarted(ctx)
	if err != nil {
		l.logger.Error("failed to lock started predictions", slog.String("error", err.Error()))
		return
	}
	if n > 0 {
		l.logger.Debug("locker pass", slog.Int64("locked", n))
	}
}
