package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"autoqa/backend/internal/config"
	"autoqa/backend/internal/models"
	"autoqa/backend/internal/recorder"
	"autoqa/backend/internal/repository"
	"autoqa/backend/internal/script"
	"autoqa/backend/internal/selector"
)

const (
	StatusCompleted = "completed"
	StatusExported  = "exported"
)

// RecordingService keeps the recent-recordings index in step with the
// script files on disk.
type RecordingService struct {
	repo   repository.RecordingRepository
	fs     afero.Fs
	cfg    config.RecorderConfig
	logger *zap.Logger
	now    func() time.Time
}

func NewRecordingService(repo repository.RecordingRepository, fs afero.Fs, cfg config.RecorderConfig, logger *zap.Logger) *RecordingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = 20
	}
	if cfg.ExportDir == "" {
		cfg.ExportDir = "exports"
	}
	return &RecordingService{
		repo:   repo,
		fs:     fs,
		cfg:    cfg,
		logger: logger.Named("recordings"),
		now:    time.Now,
	}
}

// Register adds a saved session to the index.
func (s *RecordingService) Register(ctx context.Context, name string, session *recorder.Session, art recorder.Artifacts) (*models.Recording, error) {
	if name == "" {
		name = fmt.Sprintf("Recording %s", s.now().Format("2006-01-02 15:04:05"))
	}
	rec := &models.Recording{
		Name:            name,
		URL:             session.URL,
		Device:          session.Device,
		ScriptPath:      art.ScriptPath,
		ScrollDataPath:  art.ScrollDataPath,
		StepCount:       art.StepCount,
		ScrollStepCount: art.ScrollStepCount,
		Content:         art.Script,
		Status:          StatusCompleted,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, err
	}
	s.logger.Info("Recording registered", zap.Uint("id", rec.ID), zap.String("name", name))
	return rec, nil
}

// Recent returns the newest recordings whose script still exists. Entries
// whose script file is gone are removed from the index.
func (s *RecordingService) Recent(ctx context.Context) ([]models.Recording, error) {
	all, err := s.repo.All(ctx)
	if err != nil {
		return nil, err
	}
	recent := make([]models.Recording, 0, s.cfg.RecentLimit)
	for _, rec := range all {
		if !s.scriptExists(rec) {
			s.forget(ctx, rec)
			continue
		}
		if len(recent) < s.cfg.RecentLimit {
			recent = append(recent, rec)
		}
	}
	return recent, nil
}

// Get returns a recording with its script content.
func (s *RecordingService) Get(ctx context.Context, id uint) (*models.Recording, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	raw, err := afero.ReadFile(s.fs, rec.ScriptPath)
	switch {
	case err == nil:
		rec.Content = string(raw)
	case errors.Is(err, os.ErrNotExist):
		s.forget(ctx, *rec)
		return nil, repository.ErrNotFound
	default:
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return rec, nil
}

// Prune drops index entries whose script file has vanished.
func (s *RecordingService) Prune(ctx context.Context) (int, error) {
	all, err := s.repo.All(ctx)
	if err != nil {
		return 0, err
	}
	pruned := 0
	for _, rec := range all {
		if !s.scriptExists(rec) {
			s.forget(ctx, rec)
			pruned++
		}
	}
	return pruned, nil
}

// Delete removes a recording and its files.
func (s *RecordingService) Delete(ctx context.Context, id uint) error {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	for _, path := range []string{rec.ScriptPath, rec.ScrollDataPath, rec.ExportPath} {
		if path == "" {
			continue
		}
		if err := s.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("Failed to remove recording file", zap.String("path", path), zap.Error(err))
		}
	}
	return s.repo.Delete(ctx, id)
}

// DeleteOlderThan removes recordings created before now minus maxAge.
func (s *RecordingService) DeleteOlderThan(ctx context.Context, maxAge time.Duration) (int, error) {
	expired, err := s.repo.CreatedBefore(ctx, s.now().Add(-maxAge))
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, rec := range expired {
		if err := s.Delete(ctx, rec.ID); err != nil {
			s.logger.Warn("Failed to delete expired recording", zap.Uint("id", rec.ID), zap.Error(err))
			continue
		}
		deleted++
	}
	return deleted, nil
}

// Export writes a selector-repaired copy of a recording to the exports
// directory as test-<timestamp>.spec.js.
func (s *RecordingService) Export(ctx context.Context, id uint) (*models.Recording, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	content, err := s.exportContent(rec)
	if err != nil {
		return nil, err
	}

	if err := s.fs.MkdirAll(s.cfg.ExportDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}
	path := filepath.Join(s.cfg.ExportDir, fmt.Sprintf("test-%d.spec.js", s.now().UnixMilli()))
	if err := afero.WriteFile(s.fs, path, []byte(content), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write export: %w", err)
	}

	if rec.ExportPath != "" && rec.ExportPath != path {
		_ = s.fs.Remove(rec.ExportPath)
	}
	rec.ExportPath = path
	rec.Status = StatusExported
	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, err
	}

	s.logger.Info("Recording exported", zap.Uint("id", rec.ID), zap.String("path", path))
	return rec, nil
}

// exportContent regenerates the script from the side-car when it carries
// the captured steps and otherwise repairs the saved script text.
func (s *RecordingService) exportContent(rec *models.Recording) (string, error) {
	if rec.ScrollDataPath != "" {
		raw, err := afero.ReadFile(s.fs, rec.ScrollDataPath)
		if err == nil && gjson.GetBytes(raw, "steps").IsArray() {
			data, err := recorder.LoadScrollData(s.fs, rec.ScrollDataPath)
			if err != nil {
				return "", err
			}
			return Convert(data, s.logger), nil
		}
	}
	repaired, fixes := selector.RepairScript(rec.Content)
	if len(fixes) > 0 {
		s.logger.Debug("Repaired selectors in export", zap.Uint("id", rec.ID), zap.Int("fixes", len(fixes)))
	}
	return repaired, nil
}

// Convert renders a script from side-car data with selector repair on.
func Convert(data models.ScrollData, logger *zap.Logger) string {
	return script.Synthesize(data.Steps, data.ScrollSteps, data.URL,
		script.WithSelectorRepair(), script.WithLogger(logger))
}

// Rebuild indexes scripts in the output directory that have a side-car but
// no index entry, which restores the in-memory index after a restart.
func (s *RecordingService) Rebuild(ctx context.Context) (int, error) {
	all, err := s.repo.All(ctx)
	if err != nil {
		return 0, err
	}
	known := make(map[string]bool, len(all))
	for _, rec := range all {
		known[filepath.Clean(rec.ScriptPath)] = true
	}

	sidecars, err := afero.Glob(s.fs, filepath.Join(s.cfg.OutputDir, "*.scroll.json"))
	if err != nil {
		return 0, fmt.Errorf("failed to list side-car files: %w", err)
	}

	added := 0
	for _, sidecar := range sidecars {
		scriptPath := strings.TrimSuffix(sidecar, ".scroll.json") + ".js"
		if known[filepath.Clean(scriptPath)] {
			continue
		}
		content, err := afero.ReadFile(s.fs, scriptPath)
		if err != nil {
			continue
		}
		raw, err := afero.ReadFile(s.fs, sidecar)
		if err != nil || !gjson.ValidBytes(raw) {
			s.logger.Warn("Skipping unreadable side-car", zap.String("path", sidecar))
			continue
		}
		meta := gjson.GetManyBytes(raw, "url", "timestamp", "steps.#", "scrollSteps.#")

		rec := &models.Recording{
			Name:            strings.TrimSuffix(filepath.Base(scriptPath), ".js"),
			URL:             meta[0].String(),
			ScriptPath:      scriptPath,
			ScrollDataPath:  sidecar,
			StepCount:       int(meta[2].Int()),
			ScrollStepCount: int(meta[3].Int()),
			Content:         string(content),
			Status:          StatusCompleted,
		}
		if ts := meta[1].Int(); ts > 0 {
			rec.CreatedAt = time.UnixMilli(ts)
		}
		if err := s.repo.Create(ctx, rec); err != nil {
			return added, err
		}
		added++
	}
	if added > 0 {
		s.logger.Info("Rebuilt recording index", zap.Int("added", added))
	}
	return added, nil
}

// Replays returns the replay history of a recording.
func (s *RecordingService) Replays(ctx context.Context, id uint) ([]models.Replay, error) {
	return s.repo.Replays(ctx, id)
}

func (s *RecordingService) scriptExists(rec models.Recording) bool {
	ok, err := afero.Exists(s.fs, rec.ScriptPath)
	return err == nil && ok
}

func (s *RecordingService) forget(ctx context.Context, rec models.Recording) {
	if err := s.repo.Delete(ctx, rec.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.logger.Warn("Failed to prune recording", zap.Uint("id", rec.ID), zap.Error(err))
		return
	}
	s.logger.Info("Pruned recording with missing script", zap.Uint("id", rec.ID), zap.String("path", rec.ScriptPath))
}
