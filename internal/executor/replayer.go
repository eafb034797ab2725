package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"autoqa/backend/internal/models"
	"autoqa/backend/internal/script"
	"autoqa/backend/internal/scroll"
	"autoqa/backend/internal/selector"
	"autoqa/backend/pkg/chrome"
)

type Config struct {
	ChromePath  string
	Headless    bool
	Timeout     time.Duration
	StepTimeout time.Duration
	// StepDelay is the pause after each step so the page can settle.
	StepDelay time.Duration
}

type Result struct {
	Success      bool               `json:"success"`
	ErrorMessage string             `json:"error_message,omitempty"`
	StartTime    time.Time          `json:"start_time"`
	EndTime      time.Time          `json:"end_time"`
	Logs         []models.ReplayLog `json:"logs"`
}

func (r *Result) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

func (r *Result) addLog(level, message string, stepIndex int) {
	r.Logs = append(r.Logs, models.ReplayLog{
		Timestamp: time.Now(),
		Level:     level,
		Message:   message,
		StepIndex: stepIndex,
	})
}

func (r *Result) addStepLog(level, message string, stepIndex int, action, sel string, duration time.Duration) {
	r.Logs = append(r.Logs, models.ReplayLog{
		Timestamp: time.Now(),
		Level:     level,
		Message:   message,
		StepIndex: stepIndex,
		Action:    action,
		Selector:  sel,
		Duration:  duration.Milliseconds(),
	})
}

// Replayer plays a recording back in Chrome. Selectors are resolved with the
// in-page selector engine so :has-text selectors work as recorded.
type Replayer struct {
	cfg    Config
	logger *zap.Logger
}

func NewReplayer(cfg Config, logger *zap.Logger) *Replayer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = 10 * time.Second
	}
	return &Replayer{cfg: cfg, logger: logger.Named("replayer")}
}

// Replay opens data.URL and runs the recorded timeline. It stops at the
// first failing step.
func (r *Replayer) Replay(ctx context.Context, data models.ScrollData, deviceName string) *Result {
	result := &Result{StartTime: time.Now()}
	defer func() { result.EndTime = time.Now() }()

	entries := script.Merge(data.Steps, data.ScrollSteps, script.WithLogger(r.logger))
	result.addLog("info", fmt.Sprintf("Replaying %d steps on %s", len(entries), data.URL), -1)

	execPath, err := chrome.FindChrome(r.cfg.ChromePath)
	if err != nil {
		result.ErrorMessage = err.Error()
		result.addLog("error", err.Error(), -1)
		return result
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx),
		chrome.AllocatorOptions(execPath, r.cfg.Headless)...)
	defer allocCancel()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(r.logger.Sugar().Debugf))
	defer browserCancel()

	if err := chromedp.Run(browserCtx); err != nil {
		result.ErrorMessage = fmt.Sprintf("failed to launch chrome: %v", err)
		result.addLog("error", result.ErrorMessage, -1)
		return result
	}
	defer func() {
		if err := chromedp.Cancel(browserCtx); err != nil {
			r.logger.Warn("Failed to close replay browser", zap.Error(err))
		}
	}()

	runCtx, cancel := context.WithTimeout(browserCtx, r.cfg.Timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	setup := []chromedp.Action{
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(selector.EngineScript()).Do(ctx)
			return err
		}),
	}
	if deviceName != "" {
		if info, ok := chrome.LookupDevice(deviceName); ok {
			setup = append(setup, chromedp.Emulate(info))
		}
	}
	setup = append(setup, chromedp.Navigate(data.URL), chromedp.WaitReady("body", chromedp.ByQuery))

	if err := chromedp.Run(runCtx, setup...); err != nil {
		result.ErrorMessage = fmt.Sprintf("failed to open %s: %v", data.URL, err)
		result.addLog("error", result.ErrorMessage, -1)
		return result
	}

	for i, e := range entries {
		desc := Describe(e, i, len(entries))
		started := time.Now()
		err := chromedp.Run(runCtx, r.actions(e)...)
		elapsed := time.Since(started)

		if err != nil {
			result.ErrorMessage = fmt.Sprintf("step %d failed: %v", i+1, err)
			result.addStepLog("error", desc+": "+err.Error(), i, entryAction(e), e.Selector, elapsed)
			r.logger.Warn("Replay step failed", zap.Int("step", i+1), zap.String("selector", e.Selector), zap.Error(err))
			return result
		}
		result.addStepLog("info", desc, i, entryAction(e), e.Selector, elapsed)
	}

	result.Success = true
	result.addLog("info", "Replay finished", len(entries))
	return result
}

func (r *Replayer) actions(e script.Entry) []chromedp.Action {
	var actions []chromedp.Action
	if e.Scroll != nil {
		actions = append(actions, chromedp.Evaluate(ScrollExpression(e.Scroll.Pixels), nil))
	} else {
		sel := jsString(e.Selector)
		actions = append(actions, chromedp.PollFunction(waitVisibleFunction, nil,
			chromedp.WithPollingArgs(e.Selector),
			chromedp.WithPollingTimeout(r.cfg.StepTimeout),
			chromedp.WithPollingInterval(100*time.Millisecond)))
		switch e.Step.Action {
		case models.ActionClick:
			actions = append(actions, chromedp.Evaluate(clickExpression(sel), nil))
		case models.ActionInput:
			actions = append(actions, chromedp.Evaluate(fillExpression(sel, jsString(e.Step.Value)), nil))
		}
	}
	if r.cfg.StepDelay > 0 {
		actions = append(actions, chromedp.Sleep(r.cfg.StepDelay))
	}
	return actions
}

const waitVisibleFunction = `function (sel) {
  var found = window.__autoqaSelectors.queryAll(sel);
  if (!found.length) {
    return false;
  }
  var rect = found[0].getBoundingClientRect();
  return rect.width > 0 && rect.height > 0;
}`

func clickExpression(sel string) string {
	return `(function (sel) {
  var el = window.__autoqaSelectors.queryAll(sel)[0];
  if (!el) {
    throw new Error('no element matches ' + sel);
  }
  el.scrollIntoView({ block: 'center', inline: 'center' });
  el.click();
  return true;
})(` + sel + `)`
}

func fillExpression(sel, value string) string {
	return `(function (sel, value) {
  var el = window.__autoqaSelectors.queryAll(sel)[0];
  if (!el) {
    throw new Error('no element matches ' + sel);
  }
  el.focus();
  if ('value' in el) {
    el.value = value;
  } else {
    el.textContent = value;
  }
  el.dispatchEvent(new Event('input', { bubbles: true }));
  el.dispatchEvent(new Event('change', { bubbles: true }));
  return true;
})(` + sel + `, ` + value + `)`
}

// ScrollExpression scrolls the window by pixels vertically.
func ScrollExpression(pixels float64) string {
	return fmt.Sprintf("window.scrollBy(0, %s)", scroll.FormatPixels(pixels))
}

func jsString(s string) string {
	raw, _ := json.Marshal(s)
	return string(raw)
}

func entryAction(e script.Entry) string {
	if e.Scroll != nil {
		return string(models.ActionScroll)
	}
	return string(e.Step.Action)
}

// Describe renders a one-line progress description of a timeline entry.
func Describe(e script.Entry, index, total int) string {
	progress := fmt.Sprintf("[%d/%d]", index+1, total)
	if e.Scroll != nil {
		return fmt.Sprintf("%s Scroll by %s pixels", progress, scroll.FormatPixels(e.Scroll.Pixels))
	}
	switch e.Step.Action {
	case models.ActionClick:
		return fmt.Sprintf("%s Click %s", progress, e.Selector)
	case models.ActionInput:
		if len(e.Step.Value) > 50 {
			return fmt.Sprintf("%s Fill %s (%d characters)", progress, e.Selector, len(e.Step.Value))
		}
		return fmt.Sprintf("%s Fill %s with %q", progress, e.Selector, e.Step.Value)
	}
	return fmt.Sprintf("%s %s %s", progress, e.Step.Action, e.Selector)
}
