package script

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"autoqa/backend/internal/models"
	"autoqa/backend/internal/scroll"
	"autoqa/backend/internal/selector"
)

const (
	DefaultTestName = "test"
	scrollComment   = "// Auto-recorded scroll"
)

type generator struct {
	testName string
	repair   bool
	logger   *zap.Logger
}

type Option func(*generator)

// WithSelectorRepair runs selector.Repair on click selectors as they are
// written into the script.
func WithSelectorRepair() Option {
	return func(g *generator) { g.repair = true }
}

func WithLogger(logger *zap.Logger) Option {
	return func(g *generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func WithTestName(name string) Option {
	return func(g *generator) {
		if name != "" {
			g.testName = name
		}
	}
}

func newGenerator(opts []Option) *generator {
	g := &generator{testName: DefaultTestName, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Entry is one statement of the merged timeline. Exactly one of Step and
// Scroll is set. Selector is the sanitized selector of Step.
type Entry struct {
	Timestamp int64
	Step      *models.CapturedStep
	Scroll    *models.ScrollStep
	Selector  string
}

// Merge sanitizes steps, drops the ones that cannot be written, and
// interleaves them with the scroll steps by timestamp. Entries with equal
// timestamps keep their input order, steps before scrolls.
func Merge(steps []models.CapturedStep, scrollSteps []models.ScrollStep, opts ...Option) []Entry {
	return newGenerator(opts).merge(steps, scrollSteps)
}

func (g *generator) merge(steps []models.CapturedStep, scrollSteps []models.ScrollStep) []Entry {
	entries := make([]Entry, 0, len(steps)+len(scrollSteps))
	for i := range steps {
		step := &steps[i]
		if step.Action != models.ActionClick && step.Action != models.ActionInput {
			g.logger.Warn("Skipping step with unsupported action",
				zap.Int("index", i), zap.String("action", string(step.Action)))
			continue
		}
		sel, ok := Sanitize(step.Selector)
		if !ok {
			g.logger.Warn("Skipping step with malformed selector",
				zap.Int("index", i), zap.String("action", string(step.Action)), zap.String("selector", step.Selector))
			continue
		}
		if g.repair && step.Action == models.ActionClick {
			if fixed := selector.Repair(sel); fixed != sel {
				g.logger.Debug("Repaired click selector", zap.String("original", sel), zap.String("fixed", fixed))
				sel = fixed
			}
		}
		entries = append(entries, Entry{Timestamp: step.Timestamp, Step: step, Selector: sel})
	}
	for i := range scrollSteps {
		entries = append(entries, Entry{Timestamp: scrollSteps[i].Timestamp, Scroll: &scrollSteps[i]})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp < entries[j].Timestamp
	})
	return entries
}

// Sanitize trims sel and reports whether it can be embedded in a script. A
// selector that is empty or has a line break inside it is rejected.
func Sanitize(sel string) (string, bool) {
	sel = strings.TrimSpace(sel)
	if sel == "" || strings.ContainsAny(sel, "\r\n") {
		return "", false
	}
	return sel, true
}

// Synthesize renders a Playwright test that opens url and replays the steps
// and scrolls in timestamp order. The output only depends on its inputs.
func Synthesize(steps []models.CapturedStep, scrollSteps []models.ScrollStep, url string, opts ...Option) string {
	g := newGenerator(opts)
	entries := g.merge(steps, scrollSteps)

	var w strings.Builder

	fmt.Fprint(&w, "import { test, expect } from '@playwright/test';\n\n")
	fmt.Fprintf(&w, "test('%s', async ({ page }) => {\n", EscapeJS(g.testName))
	fmt.Fprintf(&w, "  await page.goto('%s');\n", EscapeJS(url))
	for _, e := range entries {
		for _, line := range Statements(e) {
			fmt.Fprintf(&w, "  %s\n", line)
		}
	}
	fmt.Fprint(&w, "});\n")
	return w.String()
}

// Statements returns the script lines for one timeline entry.
func Statements(e Entry) []string {
	if e.Scroll != nil {
		return []string{fmt.Sprintf("await page.evaluate(() => window.scrollBy(0, %s)); %s",
			scroll.FormatPixels(e.Scroll.Pixels), scrollComment)}
	}

	sel := EscapeJS(e.Selector)
	switch e.Step.Action {
	case models.ActionClick:
		return []string{
			fmt.Sprintf("await page.waitForSelector('%s', { state: 'visible' });", sel),
			fmt.Sprintf("await page.locator('%s').click();", sel),
		}
	case models.ActionInput:
		return []string{
			fmt.Sprintf("await page.locator('%s').fill('%s');", sel, EscapeJS(e.Step.Value)),
		}
	}
	return nil
}
