package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingLocker struct {
	calls atomic.Int64
	err   error
}

func (c *countingLocker) LockStarted(ctx context.Context) (int64, error) {
	c.calls.Add(1)
	return 1, c.err
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLocker_RunsImmediatelyAndOnEveryTick(t *testing.T) {
	preds := &countingLocker{}
	l := NewLocker(preds, 10*time.Millisecond, discard())

	l.Start()
	l.Start()
	assert.Eventually(t, func() bool { return preds.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	l.Stop()

	after := preds.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, preds.calls.Load(), "no passes after Stop")
}

func TestLocker_KeepsRunningAfterErrors(t *testing.T) {
	preds := &countingLocker{err: errors.New("database is locked")}
	l := NewLocker(preds, 10*time.Millisecond, discard())

	l.Start()
	defer l.Stop()

	assert.Eventually(t, func() bool { return preds.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
}

func TestLocker_StopIsIdempotent(t *testing.T) {
	l := NewLocker(&countingLocker{}, time.Hour, discard())
	l.Start()
	l.Stop()
	l.Stop()
}
