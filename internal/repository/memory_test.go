package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoqa/backend/internal/models"
)

func newClockedRepo(start time.Time) (*MemoryRepository, *time.Time) {
	repo := NewMemoryRepository()
	now := start
	repo.now = func() time.Time { return now }
	return repo, &now
}

func TestMemoryRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	rec := &models.Recording{Name: "checkout", URL: "https://shop.example", ScriptPath: "/r/a.js", Content: "script"}
	require.NoError(t, repo.Create(ctx, rec))
	assert.NotZero(t, rec.ID)
	assert.Equal(t, "completed", rec.Status)

	got, err := repo.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "script", got.Content)

	got.Status = "exported"
	require.NoError(t, repo.Update(ctx, got))
	got, err = repo.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "exported", got.Status)

	require.NoError(t, repo.Delete(ctx, rec.ID))
	_, err = repo.Get(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, rec.ID), ErrNotFound)
	assert.ErrorIs(t, repo.Update(ctx, &models.Recording{BaseModel: models.BaseModel{ID: 99}}), ErrNotFound)
}

func TestMemoryRepository_RecentNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo, now := newClockedRepo(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))

	for i := 0; i < 25; i++ {
		*now = now.Add(time.Minute)
		require.NoError(t, repo.Create(ctx, &models.Recording{Name: "r", Content: "body"}))
	}

	recent, err := repo.Recent(ctx, 20)
	require.NoError(t, err)
	require.Len(t, recent, 20)
	assert.Equal(t, uint(25), recent[0].ID)
	assert.Equal(t, uint(6), recent[19].ID)
	assert.Empty(t, recent[0].Content)
}

func TestMemoryRepository_CreatedBefore(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	repo, now := newClockedRepo(start)

	require.NoError(t, repo.Create(ctx, &models.Recording{Name: "old"}))
	*now = start.Add(48 * time.Hour)
	require.NoError(t, repo.Create(ctx, &models.Recording{Name: "new"}))

	expired, err := repo.CreatedBefore(ctx, start.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "old", expired[0].Name)
}

func TestMemoryRepository_Replays(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	rec := &models.Recording{Name: "r"}
	require.NoError(t, repo.Create(ctx, rec))

	replay := &models.Replay{RecordingID: rec.ID, Status: "running"}
	require.NoError(t, repo.CreateReplay(ctx, replay))
	replay.Status = "passed"
	require.NoError(t, repo.UpdateReplay(ctx, replay))

	replays, err := repo.Replays(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, replays, 1)
	assert.Equal(t, "passed", replays[0].Status)

	require.NoError(t, repo.Delete(ctx, rec.ID))
	replays, err = repo.Replays(ctx, rec.ID)
	require.NoError(t, err)
	assert.Empty(t, replays)
}
