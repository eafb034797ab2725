package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"autoqa/backend/internal/models"
)

type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) Create(ctx context.Context, rec *models.Recording) error {
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to create recording: %w", err)
	}
	return nil
}

func (r *GormRepository) Get(ctx context.Context, id uint) (*models.Recording, error) {
	var rec models.Recording
	if err := r.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get recording: %w", err)
	}
	return &rec, nil
}

func (r *GormRepository) Update(ctx context.Context, rec *models.Recording) error {
	if err := r.db.WithContext(ctx).Save(rec).Error; err != nil {
		return fmt.Errorf("failed to update recording: %w", err)
	}
	return nil
}

func (r *GormRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("recording_id = ?", id).Delete(&models.Replay{}).Error; err != nil {
			return fmt.Errorf("failed to delete replays: %w", err)
		}
		res := tx.Delete(&models.Recording{}, id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete recording: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *GormRepository) Recent(ctx context.Context, limit int) ([]models.Recording, error) {
	var recs []models.Recording
	err := r.db.WithContext(ctx).
		Omit("content").
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list recordings: %w", err)
	}
	return recs, nil
}

func (r *GormRepository) All(ctx context.Context) ([]models.Recording, error) {
	var recs []models.Recording
	err := r.db.WithContext(ctx).Omit("content").Order("created_at DESC, id DESC").Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list recordings: %w", err)
	}
	return recs, nil
}

func (r *GormRepository) CreatedBefore(ctx context.Context, cutoff time.Time) ([]models.Recording, error) {
	var recs []models.Recording
	err := r.db.WithContext(ctx).Omit("content").Where("created_at < ?", cutoff).Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find expired recordings: %w", err)
	}
	return recs, nil
}

func (r *GormRepository) CreateReplay(ctx context.Context, replay *models.Replay) error {
	if err := r.db.WithContext(ctx).Create(replay).Error; err != nil {
		return fmt.Errorf("failed to create replay: %w", err)
	}
	return nil
}

func (r *GormRepository) UpdateReplay(ctx context.Context, replay *models.Replay) error {
	if err := r.db.WithContext(ctx).Save(replay).Error; err != nil {
		return fmt.Errorf("failed to update replay: %w", err)
	}
	return nil
}

func (r *GormRepository) Replays(ctx context.Context, recordingID uint) ([]models.Replay, error) {
	var replays []models.Replay
	err := r.db.WithContext(ctx).
		Where("recording_id = ?", recordingID).
		Order("created_at DESC, id DESC").
		Find(&replays).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list replays: %w", err)
	}
	return replays, nil
}
