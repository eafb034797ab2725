package recorder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"autoqa/backend/internal/scroll"
)

// Engine drives the browser of one session.
type Engine interface {
	// Start launches the browser, installs the capture script and bindings
	// reporting to sink, and navigates to url. It returns once the page has
	// loaded.
	Start(ctx context.Context, url, device string, sink Sink) error
	Close(ctx context.Context) error
}

type EngineFactory func() Engine

type Options struct {
	OutputDir       string
	ScrollThreshold float64
	SelectorRepair  bool
	CloseTimeout    time.Duration
}

// Result is what StartRecording and StopRecording report to callers.
type Result struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	SessionID       string `json:"session_id,omitempty"`
	URL             string `json:"url,omitempty"`
	ScriptPath      string `json:"script_path,omitempty"`
	ScrollDataPath  string `json:"scroll_data_path,omitempty"`
	StepCount       int    `json:"step_count"`
	ScrollStepCount int    `json:"scroll_step_count"`
	Script          string `json:"script,omitempty"`
}

// Manager owns the single live recording session.
type Manager struct {
	opts      Options
	fs        afero.Fs
	newEngine EngineFactory
	logger    *zap.Logger

	mu     sync.Mutex
	active *Session
	engine Engine
	last   *Session
}

func NewManager(opts Options, fs afero.Fs, newEngine EngineFactory, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.ScrollThreshold <= 0 {
		opts.ScrollThreshold = scroll.DefaultThreshold
	}
	if opts.CloseTimeout <= 0 {
		opts.CloseTimeout = 5 * time.Second
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "recordings"
	}
	return &Manager{
		opts:      opts,
		fs:        fs,
		newEngine: newEngine,
		logger:    logger.Named("recorder"),
	}
}

// Active returns the session currently recording, if any.
func (m *Manager) Active() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Last returns the most recently stopped session.
func (m *Manager) Last() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Start begins a new session. Only one session can record at a time.
func (m *Manager) Start(ctx context.Context, url, device string) (*Session, error) {
	if url == "" {
		return nil, errors.New("url is required")
	}

	m.mu.Lock()
	if m.active != nil {
		m.mu.Unlock()
		return nil, ErrRecordingInProgress
	}
	session := NewSession(url, device, m.opts.ScrollThreshold)
	engine := m.newEngine()
	session.begin()
	m.active = session
	m.engine = engine
	m.mu.Unlock()

	if err := engine.Start(ctx, url, device, session); err != nil {
		session.stop()
		m.closeEngine(ctx, engine, session.ID)

		// A concurrent Stop may already have taken this session and another
		// Start may own the slot by now.
		m.mu.Lock()
		if m.active == session {
			m.active = nil
			m.engine = nil
		}
		m.mu.Unlock()
		return nil, fmt.Errorf("failed to start recording: %w", err)
	}

	m.logger.Info("Recording started",
		zap.String("session_id", session.ID),
		zap.String("url", url),
		zap.String("device", device))
	return session, nil
}

// Stop ends the active session, writes its artifacts and closes the
// browser. A session whose save failed is still returned and kept as Last
// so Save can be retried.
func (m *Manager) Stop(ctx context.Context) (*Session, Artifacts, error) {
	m.mu.Lock()
	session, engine := m.active, m.engine
	if session == nil {
		m.mu.Unlock()
		return nil, Artifacts{}, ErrNoRecording
	}
	m.active = nil
	m.engine = nil
	m.last = session
	m.mu.Unlock()

	session.stop()

	artifacts, saveErr := session.Save(m.fs, SaveOptions{
		OutputDir:      m.opts.OutputDir,
		Threshold:      m.opts.ScrollThreshold,
		SelectorRepair: m.opts.SelectorRepair,
		Logger:         m.logger,
	})

	m.closeEngine(ctx, engine, session.ID)

	if saveErr != nil {
		m.logger.Error("Failed to save recording", zap.String("session_id", session.ID), zap.Error(saveErr))
		return session, Artifacts{}, saveErr
	}
	return session, artifacts, nil
}

func (m *Manager) closeEngine(ctx context.Context, engine Engine, sessionID string) {
	if engine == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.opts.CloseTimeout)
	defer cancel()
	if err := engine.Close(ctx); err != nil {
		m.logger.Warn("Failed to close recording browser", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// StartRecording is Start reported as a Result.
func (m *Manager) StartRecording(ctx context.Context, url, device string) Result {
	session, err := m.Start(ctx, url, device)
	if err != nil {
		return Result{Success: false, Message: err.Error()}
	}
	return Result{
		Success:   true,
		Message:   "Recording started",
		SessionID: session.ID,
		URL:       session.URL,
	}
}

// StopRecording is Stop reported as a Result.
func (m *Manager) StopRecording(ctx context.Context) Result {
	session, artifacts, err := m.Stop(ctx)
	if err != nil {
		res := Result{Success: false, Message: err.Error()}
		if session != nil {
			res.SessionID = session.ID
			res.URL = session.URL
			res.StepCount = len(session.Steps())
		}
		return res
	}
	return Result{
		Success:         true,
		Message:         "Recording saved",
		SessionID:       session.ID,
		URL:             session.URL,
		ScriptPath:      artifacts.ScriptPath,
		ScrollDataPath:  artifacts.ScrollDataPath,
		StepCount:       artifacts.StepCount,
		ScrollStepCount: artifacts.ScrollStepCount,
		Script:          artifacts.Script,
	}
}

// RetrySave writes the last stopped session again.
func (m *Manager) RetrySave() (Artifacts, error) {
	session := m.Last()
	if session == nil {
		return Artifacts{}, ErrNoRecording
	}
	return session.Save(m.fs, SaveOptions{
		OutputDir:      m.opts.OutputDir,
		Threshold:      m.opts.ScrollThreshold,
		SelectorRepair: m.opts.SelectorRepair,
		Logger:         m.logger,
	})
}
