package recorder

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"autoqa/backend/internal/models"
	"autoqa/backend/internal/script"
	"autoqa/backend/internal/scroll"
)

type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StateStopped   State = "stopped"
)

var (
	ErrRecordingInProgress = errors.New("a recording is already in progress")
	ErrNoRecording         = errors.New("no recording in progress")
	ErrNotStopped          = errors.New("recording has not been stopped")
)

// Sink receives what the page reports while a session records.
type Sink interface {
	OnStep(step models.CapturedStep)
	OnScroll(y float64, timestamp int64)
}

// Artifacts describes the files written for a stopped session.
type Artifacts struct {
	ScriptPath      string `json:"script_path"`
	ScrollDataPath  string `json:"scroll_data_path"`
	Script          string `json:"-"`
	StepCount       int    `json:"step_count"`
	ScrollStepCount int    `json:"scroll_step_count"`
}

// Session is one recording. Steps and scroll samples are only accepted
// while the session is recording.
type Session struct {
	ID        string
	URL       string
	Device    string
	StartedAt time.Time

	mu        sync.Mutex
	state     State
	steps     []models.CapturedStep
	samples   []models.ScrollSample
	filter    *scroll.Filter
	stoppedAt time.Time
	artifacts *Artifacts
	watchers  map[int]chan models.CapturedStep
	nextWatch int
}

func NewSession(url, device string, threshold float64) *Session {
	return &Session{
		ID:        uuid.NewString(),
		URL:       url,
		Device:    device,
		StartedAt: time.Now(),
		state:     StateIdle,
		filter:    scroll.NewFilter(threshold),
		watchers:  make(map[int]chan models.CapturedStep),
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateRecording
	s.filter.Reset()
}

// stop freezes the captured data. Later callbacks are ignored.
func (s *Session) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateStopped {
		return
	}
	s.state = StateStopped
	s.stoppedAt = time.Now()
	for id, ch := range s.watchers {
		close(ch)
		delete(s.watchers, id)
	}
}

func (s *Session) OnStep(step models.CapturedStep) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRecording {
		return
	}
	s.steps = append(s.steps, step)
	for _, ch := range s.watchers {
		select {
		case ch <- step:
		default:
		}
	}
}

func (s *Session) OnScroll(y float64, timestamp int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRecording {
		return
	}
	if !s.filter.Accept(y) {
		return
	}
	s.samples = append(s.samples, models.ScrollSample{ScrollY: y, Timestamp: timestamp})
}

// Steps returns a copy of the steps captured so far.
func (s *Session) Steps() []models.CapturedStep {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.CapturedStep(nil), s.steps...)
}

// Samples returns a copy of the scroll samples kept so far.
func (s *Session) Samples() []models.ScrollSample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ScrollSample(nil), s.samples...)
}

// Artifacts returns the files of the last successful Save.
func (s *Session) Artifacts() (Artifacts, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.artifacts == nil {
		return Artifacts{}, false
	}
	return *s.artifacts, true
}

// Watch streams steps as they are captured. The channel is closed when the
// session stops or cancel is called. Slow readers miss steps.
func (s *Session) Watch(buffer int) (<-chan models.CapturedStep, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan models.CapturedStep, buffer)
	if s.state == StateStopped {
		close(ch)
		return ch, func() {}
	}
	id := s.nextWatch
	s.nextWatch++
	s.watchers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if w, ok := s.watchers[id]; ok {
				close(w)
				delete(s.watchers, id)
			}
		})
	}
}

// SaveOptions controls where and how a stopped session is written.
type SaveOptions struct {
	OutputDir      string
	Threshold      float64
	SelectorRepair bool
	Logger         *zap.Logger
}

// Save aggregates the scroll samples, renders the script and writes it with
// its side-car file. It can be called again after a failure.
func (s *Session) Save(fs afero.Fs, opts SaveOptions) (Artifacts, error) {
	s.mu.Lock()
	if s.state != StateStopped {
		s.mu.Unlock()
		return Artifacts{}, ErrNotStopped
	}
	steps := append([]models.CapturedStep(nil), s.steps...)
	samples := append([]models.ScrollSample(nil), s.samples...)
	stoppedAt := s.stoppedAt
	s.mu.Unlock()

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	scrollSteps := scroll.Aggregate(samples, opts.Threshold)
	scriptOpts := []script.Option{script.WithLogger(logger)}
	if opts.SelectorRepair {
		scriptOpts = append(scriptOpts, script.WithSelectorRepair())
	}
	content := script.Synthesize(steps, scrollSteps, s.URL, scriptOpts...)

	if err := fs.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return Artifacts{}, fmt.Errorf("failed to create output directory: %w", err)
	}

	data := models.ScrollData{
		URL:         s.URL,
		Timestamp:   stoppedAt.UnixMilli(),
		Positions:   samples,
		ScrollSteps: scrollSteps,
		Steps:       steps,
	}
	if data.Positions == nil {
		data.Positions = []models.ScrollSample{}
	}
	if data.ScrollSteps == nil {
		data.ScrollSteps = []models.ScrollStep{}
	}
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return Artifacts{}, fmt.Errorf("failed to encode scroll data: %w", err)
	}

	scriptPath := filepath.Join(opts.OutputDir, fmt.Sprintf("playwright-recording-%d.js", stoppedAt.UnixMilli()))
	if err := afero.WriteFile(fs, scriptPath, []byte(content), 0o644); err != nil {
		return Artifacts{}, fmt.Errorf("failed to write script: %w", err)
	}
	sidecar := ScrollDataPath(scriptPath)
	if err := afero.WriteFile(fs, sidecar, raw, 0o644); err != nil {
		// A script without its side-car is not a recording.
		if rmErr := fs.Remove(scriptPath); rmErr != nil && !os.IsNotExist(rmErr) {
			logger.Warn("Failed to remove orphaned script", zap.String("path", scriptPath), zap.Error(rmErr))
		}
		return Artifacts{}, fmt.Errorf("failed to write scroll data: %w", err)
	}

	artifacts := Artifacts{
		ScriptPath:      scriptPath,
		ScrollDataPath:  sidecar,
		Script:          content,
		StepCount:       len(steps),
		ScrollStepCount: len(scrollSteps),
	}
	s.mu.Lock()
	s.artifacts = &artifacts
	s.mu.Unlock()

	logger.Info("Recording saved",
		zap.String("session_id", s.ID),
		zap.String("script", scriptPath),
		zap.Int("steps", len(steps)),
		zap.Int("scroll_steps", len(scrollSteps)))
	return artifacts, nil
}

// ScrollDataPath returns the side-car path for a script: the trailing .js
// becomes .scroll.json.
func ScrollDataPath(scriptPath string) string {
	return strings.TrimSuffix(scriptPath, ".js") + ".scroll.json"
}

// LoadScrollData reads a side-car file.
func LoadScrollData(fs afero.Fs, path string) (models.ScrollData, error) {
	var data models.ScrollData
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return data, fmt.Errorf("failed to read scroll data: %w", err)
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return data, fmt.Errorf("failed to decode scroll data %s: %w", path, err)
	}
	return data, nil
}
