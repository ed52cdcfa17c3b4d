package service

import (
	"context"
	"log/slog"
	"time"

	"fixitnow/internal/repository"
)

const expiryBatchSize = 100

// ExpiryService periodically closes broadcasts nobody accepted in time.
type ExpiryService struct {
	bookings repository.BookingRepository
	engine   *BookingService
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
}

// NewExpiryService creates a sweeper that runs every interval, each run bounded by timeout.
func NewExpiryService(bookings repository.BookingRepository, engine *BookingService, logger *slog.Logger, interval, timeout time.Duration) *ExpiryService {
	if interval <= 0 {
		interval = time.Minute
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &ExpiryService{
		bookings: bookings,
		engine:   engine,
		logger:   logger,
		interval: interval,
		timeout:  timeout,
		now:      time.Now,
	}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *ExpiryService) Run(ctx context.Context) error {
	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("expiry sweeper stopped")
			return nil
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *ExpiryService) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	n, err := s.ExpireDue(runCtx)
	if err != nil {
		s.logger.Error("expiry run failed", "expired", n, "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("expiry run complete", "expired", n, "duration", time.Since(start))
	}
}

// ExpireDue expires every active broadcast whose window has closed and returns how
// many were expired. A booking accepted between listing and expiry is skipped.
func (s *ExpiryService) ExpireDue(ctx context.Context) (int, error) {
	due, err := s.bookings.ListExpiredBroadcasts(ctx, s.now(), expiryBatchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, b := range due {
		if err := ctx.Err(); err != nil {
			return expired, err
		}

		_, ok, err := s.engine.ExpireBroadcast(ctx, b.ID)
		if err != nil {
			s.logger.Warn("failed to expire broadcast", "booking_id", b.ID, "error", err)
			continue
		}
		if ok {
			expired++
		}
	}
	return expired, nil
}
