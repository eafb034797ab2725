package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// SchedulerService runs the retention cleanup on a cron schedule.
type SchedulerService struct {
	cron       *cron.Cron
	recordings *RecordingService
	maxAge     time.Duration
	logger     *zap.Logger
}

// NewSchedulerService registers the cleanup job. schedule uses the
// six-field (with seconds) cron syntax.
func NewSchedulerService(recordings *RecordingService, schedule string, maxAge time.Duration, logger *zap.Logger) (*SchedulerService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &SchedulerService{
		cron:       cron.New(cron.WithSeconds()),
		recordings: recordings,
		maxAge:     maxAge,
		logger:     logger.Named("scheduler"),
	}

	entryID, err := s.cron.AddFunc(schedule, func() {
		if _, err := s.Cleanup(context.Background()); err != nil {
			s.logger.Error("Retention cleanup failed", zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid retention schedule %q: %w", schedule, err)
	}
	s.logger.Info("Retention cleanup scheduled",
		zap.Int("entry", int(entryID)), zap.String("schedule", schedule), zap.Duration("max_age", maxAge))
	return s, nil
}

// Cleanup deletes recordings older than the configured age.
func (s *SchedulerService) Cleanup(ctx context.Context) (int, error) {
	deleted, err := s.recordings.DeleteOlderThan(ctx, s.maxAge)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.logger.Info("Deleted expired recordings", zap.Int("count", deleted))
	}
	return deleted, nil
}

// Next returns when the cleanup runs next. It is zero before Start.
func (s *SchedulerService) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *SchedulerService) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and waits for a running cleanup to finish.
func (s *SchedulerService) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}
