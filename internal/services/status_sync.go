package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// StatusSyncService periodically drops index entries whose script file was
// removed outside the application.
type StatusSyncService struct {
	recordings *RecordingService
	interval   time.Duration
	logger     *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewStatusSyncService(recordings *RecordingService, interval time.Duration, logger *zap.Logger) *StatusSyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &StatusSyncService{recordings: recordings, interval: interval, logger: logger.Named("status_sync")}
}

func (s *StatusSyncService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.syncLoop(ctx, s.done)
	s.logger.Info("Status sync service started", zap.Duration("interval", s.interval))
}

func (s *StatusSyncService) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("Status sync service stopped")
}

func (s *StatusSyncService) syncLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sync(ctx)
		}
	}
}

func (s *StatusSyncService) sync(ctx context.Context) {
	pruned, err := s.recordings.Prune(ctx)
	if err != nil {
		s.logger.Warn("Failed to prune recording index", zap.Error(err))
		return
	}
	if pruned > 0 {
		s.logger.Info("Pruned stale recordings", zap.Int("count", pruned))
	}
}
