package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"autoqa/backend/internal/models"
)

// MemoryRepository keeps the index in process. It is used when no database
// is configured and by tests.
type MemoryRepository struct {
	mu         sync.RWMutex
	now        func() time.Time
	recordings map[uint]models.Recording
	replays    map[uint]models.Replay
	nextID     uint
	nextReplay uint
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		now:        time.Now,
		recordings: make(map[uint]models.Recording),
		replays:    make(map[uint]models.Replay),
	}
}

func (r *MemoryRepository) Create(_ context.Context, rec *models.Recording) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	rec.ID = r.nextID
	now := r.now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	if rec.Status == "" {
		rec.Status = "completed"
	}
	r.recordings[rec.ID] = *rec
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id uint) (*models.Recording, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.recordings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (r *MemoryRepository) Update(_ context.Context, rec *models.Recording) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.recordings[rec.ID]; !ok {
		return ErrNotFound
	}
	rec.UpdatedAt = r.now()
	r.recordings[rec.ID] = *rec
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.recordings[id]; !ok {
		return ErrNotFound
	}
	delete(r.recordings, id)
	for rid, replay := range r.replays {
		if replay.RecordingID == id {
			delete(r.replays, rid)
		}
	}
	return nil
}

func (r *MemoryRepository) Recent(ctx context.Context, limit int) ([]models.Recording, error) {
	recs, _ := r.All(ctx)
	if limit >= 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

func (r *MemoryRepository) All(_ context.Context) ([]models.Recording, error) {
	r.mu.RLock()
	recs := make([]models.Recording, 0, len(r.recordings))
	for _, rec := range r.recordings {
		rec.Content = ""
		recs = append(recs, rec)
	}
	r.mu.RUnlock()

	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.After(recs[j].CreatedAt)
		}
		return recs[i].ID > recs[j].ID
	})
	return recs, nil
}

func (r *MemoryRepository) CreatedBefore(ctx context.Context, cutoff time.Time) ([]models.Recording, error) {
	all, _ := r.All(ctx)
	var expired []models.Recording
	for _, rec := range all {
		if rec.CreatedAt.Before(cutoff) {
			expired = append(expired, rec)
		}
	}
	return expired, nil
}

func (r *MemoryRepository) CreateReplay(_ context.Context, replay *models.Replay) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextReplay++
	replay.ID = r.nextReplay
	now := r.now()
	replay.CreatedAt, replay.UpdatedAt = now, now
	r.replays[replay.ID] = *replay
	return nil
}

func (r *MemoryRepository) UpdateReplay(_ context.Context, replay *models.Replay) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.replays[replay.ID]; !ok {
		return ErrNotFound
	}
	replay.UpdatedAt = r.now()
	r.replays[replay.ID] = *replay
	return nil
}

func (r *MemoryRepository) Replays(_ context.Context, recordingID uint) ([]models.Replay, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.Replay
	for _, replay := range r.replays {
		if replay.RecordingID == recordingID {
			out = append(out, replay)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}
