package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// Purger removes pending accounts whose OTP has expired.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Sweeper periodically purges expired pending accounts.
type Sweeper struct {
	scheduler *gocron.Scheduler
	purger    Purger
	logger    *zap.Logger
	timeout   time.Duration
}

func NewSweeper(purger Purger, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.SingletonModeAll()
	return &Sweeper{scheduler: scheduler, purger: purger, logger: logger, timeout: 30 * time.Second}
}

// Start schedules the purge every interval and returns immediately.
func (s *Sweeper) Start(interval time.Duration) error {
	if _, err := s.scheduler.Every(interval).Do(s.Run); err != nil {
		return fmt.Errorf("schedule sweeper: %w", err)
	}
	s.scheduler.StartAsync()
	s.logger.Info("expired account sweeper started", zap.Duration("interval", interval))
	return nil
}

// Run performs one purge pass.
func (s *Sweeper) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	n, err := s.purger.PurgeExpired(ctx)
	if err != nil {
		s.logger.Error("expired account sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("expired accounts purged", zap.Int64("count", n))
	}
}

func (s *Sweeper) Stop() {
	s.scheduler.Stop()
}
