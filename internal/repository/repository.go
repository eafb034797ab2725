package repository

import (
	"context"
	"errors"
	"time"

	"autoqa/backend/internal/models"
)

var ErrNotFound = errors.New("record not found")

// RecordingRepository is the recent-recordings index and replay history.
type RecordingRepository interface {
	Create(ctx context.Context, rec *models.Recording) error
	Get(ctx context.Context, id uint) (*models.Recording, error)
	Update(ctx context.Context, rec *models.Recording) error
	Delete(ctx context.Context, id uint) error
	// Recent returns up to limit recordings, newest first.
	Recent(ctx context.Context, limit int) ([]models.Recording, error)
	// All returns every recording, newest first.
	All(ctx context.Context) ([]models.Recording, error)
	// CreatedBefore returns recordings created before cutoff.
	CreatedBefore(ctx context.Context, cutoff time.Time) ([]models.Recording, error)

	CreateReplay(ctx context.Context, replay *models.Replay) error
	UpdateReplay(ctx context.Context, replay *models.Replay) error
	Replays(ctx context.Context, recordingID uint) ([]models.Replay, error)
}

var (
	_ RecordingRepository = (*GormRepository)(nil)
	_ RecordingRepository = (*MemoryRepository)(nil)
)
