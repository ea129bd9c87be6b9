package slack

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"relay_bot/internal/slack/service"
)

type countingCleaner struct {
	calls atomic.Int32
}

func (c *countingCleaner) Clean(ctx context.Context) (service.CleanReport, error) {
	c.calls.Add(1)
	return service.CleanReport{}, nil
}

func TestCleanupSchedulerSweepsPeriodically(t *testing.T) {
	cleaner := &countingCleaner{}
	scheduler := newCleanupScheduler(cleaner, 20*time.Millisecond)

	scheduler.start()
	time.Sleep(70 * time.Millisecond)
	scheduler.stop()

	if calls := cleaner.calls.Load(); calls < 2 {
		t.Fatalf("expected at least 2 sweeps, got %d", calls)
	}
}

func TestCleanupSchedulerStopIsIdempotent(t *testing.T) {
	scheduler := newCleanupScheduler(&countingCleaner{}, time.Hour)

	// 未启动时 stop 不应崩溃
	scheduler.stop()

	scheduler.start()
	scheduler.stop()
	scheduler.stop()
}

func TestCleanupSchedulerNilReceiverSafe(t *testing.T) {
	var scheduler *cleanupScheduler
	scheduler.start()
	scheduler.stop()
}
