package slack

import (
	"context"
	"time"

	"relay_bot/internal/logger"
	"relay_bot/internal/slack/service"
)

// cleanupScheduler 周期触发中继记录清理。命令触发之外的兜底，
// 保证被放弃的选择提示最终会按 TTL 过期。
type cleanupScheduler struct {
	cleaner  service.CleanerService
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

func newCleanupScheduler(cleaner service.CleanerService, interval time.Duration) *cleanupScheduler {
	return &cleanupScheduler{
		cleaner:  cleaner,
		interval: interval,
	}
}

func (s *cleanupScheduler) start() {
	if s == nil || s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(ctx)
	logger.L().Infof("Cleanup scheduler started with interval %s", s.interval)
}

func (s *cleanupScheduler) stop() {
	if s == nil || s.cancel == nil {
		return
	}

	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil
	logger.L().Info("Cleanup scheduler stopped")
}

func (s *cleanupScheduler) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *cleanupScheduler) sweep(parent context.Context) {
	if parent.Err() != nil {
		return
	}

	runCtx, cancel := context.WithTimeout(parent, 10*time.Minute)
	defer cancel()

	if _, err := s.cleaner.Clean(runCtx); err != nil {
		logger.L().Errorf("Scheduled relay record sweep failed: %v", err)
	}
}
