package housekeeping

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/scribe/domain/repositories"
)

const DefaultCleanupInterval = 15 * time.Minute

// RequestLogCleanupService removes expired request records periodically
type RequestLogCleanupService struct {
	requestLog repositories.RequestLogRepository
	interval   time.Duration
	logger     *zap.Logger
	stopChan   chan struct{}
	doneChan   chan struct{}
}

// NewRequestLogCleanupService creates a new cleanup service
func NewRequestLogCleanupService(
	requestLog repositories.RequestLogRepository,
	interval time.Duration,
	logger *zap.Logger,
) *RequestLogCleanupService {
	if interval <= 0 {
		logger.Info("Using default request log cleanup interval", zap.Duration("interval", DefaultCleanupInterval))
		interval = DefaultCleanupInterval
	}
	return &RequestLogCleanupService{
		requestLog: requestLog,
		interval:   interval,
		logger:     logger,
		stopChan:   make(chan struct{}),
		doneChan:   make(chan struct{}),
	}
}

// Start begins the cleanup loop in a goroutine
func (s *RequestLogCleanupService) Start(ctx context.Context) {
	s.logger.Info("Starting request log cleanup service", zap.Duration("interval", s.interval))
	go s.cleanupLoop(ctx)
}

// Stop stops the cleanup loop and waits for it to exit
func (s *RequestLogCleanupService) Stop() {
	s.logger.Info("Stopping request log cleanup service")
	close(s.stopChan)
	<-s.doneChan
}

func (s *RequestLogCleanupService) cleanupLoop(ctx context.Context) {
	defer close(s.doneChan)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.runCleanup(ctx)
		}
	}
}

// runCleanup deletes records whose retention has passed
func (s *RequestLogCleanupService) runCleanup(ctx context.Context) int64 {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	deleted, err := s.requestLog.DeleteExpired(ctx, time.Now())
	if err != nil {
		s.logger.Error("Failed to delete expired request records", zap.Error(err))
		return 0
	}

	if deleted > 0 {
		s.logger.Info("Deleted expired request records", zap.Int64("count", deleted))
	}
	return deleted
}
