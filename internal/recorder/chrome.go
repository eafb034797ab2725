package recorder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"autoqa/backend/internal/models"
	"autoqa/backend/pkg/chrome"
)

type ChromeConfig struct {
	ChromePath  string
	Headless    bool
	LoadTimeout time.Duration
}

// ChromeEngine records through a chromedp-controlled Chrome. The page
// reports steps and scroll positions through runtime bindings.
type ChromeEngine struct {
	cfg    ChromeConfig
	logger *zap.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancels []context.CancelFunc
}

func NewChromeEngine(cfg ChromeConfig, logger *zap.Logger) *ChromeEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = 30 * time.Second
	}
	return &ChromeEngine{cfg: cfg, logger: logger.Named("chrome")}
}

// ChromeFactory returns an EngineFactory building ChromeEngines.
func ChromeFactory(cfg ChromeConfig, logger *zap.Logger) EngineFactory {
	return func() Engine { return NewChromeEngine(cfg, logger) }
}

func (e *ChromeEngine) Start(ctx context.Context, url, deviceName string, sink Sink) error {
	execPath, err := chrome.FindChrome(e.cfg.ChromePath)
	if err != nil {
		return err
	}

	// The browser outlives the start request, so it hangs off a detached context.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx),
		chrome.AllocatorOptions(execPath, e.cfg.Headless)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(e.logger.Sugar().Debugf),
		chromedp.WithErrorf(e.logger.Sugar().Warnf))

	e.mu.Lock()
	e.ctx = browserCtx
	e.cancels = []context.CancelFunc{browserCancel, allocCancel}
	e.mu.Unlock()

	// First Run allocates the browser and must not carry a deadline.
	if err := chromedp.Run(browserCtx); err != nil {
		return fmt.Errorf("failed to launch chrome: %w", err)
	}

	chromedp.ListenTarget(browserCtx, func(ev interface{}) {
		if called, ok := ev.(*runtime.EventBindingCalled); ok {
			if err := dispatchBinding(sink, called.Name, called.Payload); err != nil {
				e.logger.Warn("Dropped page callback", zap.String("binding", called.Name), zap.Error(err))
			}
		}
	})

	actions := []chromedp.Action{
		runtime.AddBinding(BindingStep),
		runtime.AddBinding(BindingScroll),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(recordingScript()).Do(ctx)
			return err
		}),
	}
	if deviceName != "" {
		if info, ok := chrome.LookupDevice(deviceName); ok {
			e.logger.Info("Applying device emulation",
				zap.String("device", info.Name), zap.Int64("width", info.Width), zap.Int64("height", info.Height))
			actions = append(actions, chromedp.Emulate(info))
		} else {
			e.logger.Warn("Unknown device, recording without emulation", zap.String("device", deviceName))
		}
	}
	actions = append(actions,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)

	runCtx, cancel := context.WithTimeout(browserCtx, e.cfg.LoadTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		return fmt.Errorf("failed to open %s: %w", url, err)
	}
	return nil
}

// Close shuts the browser down. It is safe to call more than once.
func (e *ChromeEngine) Close(ctx context.Context) error {
	e.mu.Lock()
	browserCtx, cancels := e.ctx, e.cancels
	e.ctx, e.cancels = nil, nil
	e.mu.Unlock()

	if browserCtx == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- chromedp.Cancel(browserCtx) }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	for _, cancel := range cancels {
		cancel()
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to close chrome: %w", err)
	}
	return nil
}

type scrollPayload struct {
	ScrollY   float64 `json:"scrollY"`
	Timestamp int64   `json:"timestamp"`
}

// dispatchBinding decodes a binding payload and hands it to sink.
func dispatchBinding(sink Sink, name, payload string) error {
	switch name {
	case BindingStep:
		var step models.CapturedStep
		if err := json.Unmarshal([]byte(payload), &step); err != nil {
			return fmt.Errorf("invalid step payload: %w", err)
		}
		if step.Action != models.ActionClick && step.Action != models.ActionInput {
			return fmt.Errorf("unsupported action %q", step.Action)
		}
		sink.OnStep(step)
	case BindingScroll:
		var s scrollPayload
		if err := json.Unmarshal([]byte(payload), &s); err != nil {
			return fmt.Errorf("invalid scroll payload: %w", err)
		}
		sink.OnScroll(s.ScrollY, s.Timestamp)
	default:
		return fmt.Errorf("unknown binding %q", name)
	}
	return nil
}
