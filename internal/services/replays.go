package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"autoqa/backend/internal/executor"
	"autoqa/backend/internal/models"
	"autoqa/backend/internal/recorder"
)

const (
	ReplayRunning = "running"
	ReplayPassed  = "passed"
	ReplayFailed  = "failed"
)

var ErrNotReplayable = errors.New("recording has no side-car data to replay")

// ReplayService queues replays of indexed recordings and stores their
// outcome in the replay history.
type ReplayService struct {
	recordings *RecordingService
	executor   *executor.Executor
	logger     *zap.Logger
}

func NewReplayService(recordings *RecordingService, exec *executor.Executor, logger *zap.Logger) *ReplayService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReplayService{recordings: recordings, executor: exec, logger: logger.Named("replays")}
}

// Start records a running replay and queues it. The returned replay is a
// snapshot; the stored row is updated once the replay finishes.
func (s *ReplayService) Start(ctx context.Context, recordingID uint) (*models.Replay, error) {
	rec, err := s.recordings.repo.Get(ctx, recordingID)
	if err != nil {
		return nil, err
	}
	if rec.ScrollDataPath == "" {
		return nil, ErrNotReplayable
	}
	data, err := recorder.LoadScrollData(s.recordings.fs, rec.ScrollDataPath)
	if err != nil {
		return nil, err
	}
	if data.URL == "" {
		data.URL = rec.URL
	}

	replay := &models.Replay{
		RecordingID: rec.ID,
		Status:      ReplayRunning,
		StartTime:   s.recordings.now(),
	}
	if err := s.recordings.repo.CreateReplay(ctx, replay); err != nil {
		return nil, err
	}

	stored := *replay
	err = s.executor.Submit(executor.Job{
		ReplayID: replay.ID,
		Data:     data,
		Device:   rec.Device,
		Done: func(result *executor.Result) {
			s.finish(stored, result)
		},
	})
	if err != nil {
		now := s.recordings.now()
		replay.Status = ReplayFailed
		replay.EndTime = &now
		replay.ErrorMessage = err.Error()
		if uerr := s.recordings.repo.UpdateReplay(ctx, replay); uerr != nil {
			s.logger.Warn("Failed to update replay", zap.Uint("id", replay.ID), zap.Error(uerr))
		}
		return nil, err
	}

	s.logger.Info("Replay queued", zap.Uint("id", replay.ID), zap.Uint("recording_id", rec.ID))
	return replay, nil
}

// Cancel stops a queued or running replay.
func (s *ReplayService) Cancel(replayID uint) bool {
	return s.executor.Cancel(replayID)
}

func (s *ReplayService) finish(replay models.Replay, result *executor.Result) {
	end := result.EndTime
	if end.IsZero() {
		end = time.Now()
	}
	replay.EndTime = &end
	replay.Duration = int(result.Duration().Milliseconds())
	replay.ErrorMessage = result.ErrorMessage
	replay.Status = ReplayFailed
	if result.Success {
		replay.Status = ReplayPassed
	}

	logs, err := json.Marshal(result.Logs)
	if err != nil {
		s.logger.Warn("Failed to encode replay logs", zap.Uint("id", replay.ID), zap.Error(err))
	} else {
		replay.Logs = string(logs)
	}

	if err := s.recordings.repo.UpdateReplay(context.Background(), &replay); err != nil {
		s.logger.Error("Failed to store replay result", zap.Uint("id", replay.ID), zap.Error(err))
		return
	}
	s.logger.Info("Replay stored", zap.Uint("id", replay.ID), zap.String("status", replay.Status))
}
