package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"autoqa/backend/internal/executor"
	"autoqa/backend/internal/models"
	"autoqa/backend/internal/recorder"
	"autoqa/backend/internal/scroll"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeScrollData(t *testing.T, path string, data models.ScrollData) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o644))
}

func TestVersionCmd(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "autoqa dev\n", out)
}

func TestConvertCmd(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "playwright-recording-1.scroll.json")
	writeScrollData(t, input, models.ScrollData{
		URL: "https://shop.example",
		Steps: []models.CapturedStep{
			{Action: models.ActionClick, Selector: ".4rating", Timestamp: 20},
		},
		ScrollSteps: []models.ScrollStep{scroll.NewStep(300, 10)},
	})

	out, err := run(t, "convert", input)
	require.NoError(t, err)
	output := filepath.Join(dir, "playwright-recording-1.spec.js")
	assert.Contains(t, out, "Wrote "+output)

	raw, err := os.ReadFile(output)
	require.NoError(t, err)
	src := string(raw)
	assert.Contains(t, src, "await page.goto('https://shop.example');")
	assert.Contains(t, src, `locator('.\\34 rating').click()`)
	assert.Less(t, strings.Index(src, "scrollBy(0, 300)"), strings.Index(src, "click()"))
}

func TestConvertCmd_MissingInput(t *testing.T) {
	_, err := run(t, "convert", filepath.Join(t.TempDir(), "nope.scroll.json"))
	assert.Error(t, err)
}

func TestRepairCmd(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.spec.js"),
		[]byte("await page.locator('.4rating').click();\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.spec.js"),
		[]byte("await page.locator('#ok').click();\n"), 0o644))

	out, err := run(t, "repair", dir)
	require.NoError(t, err)
	assert.Contains(t, out, `.4rating -> .\34 rating`)
	assert.Contains(t, out, "Processed 2 files, fixed 1, failed 0")

	raw, err := os.ReadFile(filepath.Join(dir, "a.spec.js"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `locator('.\\34 rating')`)
}

type fakeEngine struct{ sink recorder.Sink }

func (f *fakeEngine) Start(_ context.Context, _, _ string, sink recorder.Sink) error {
	f.sink = sink
	sink.OnStep(models.CapturedStep{Action: models.ActionClick, Selector: "#go", Timestamp: 1})
	return nil
}

func (f *fakeEngine) Close(context.Context) error { return nil }

func TestRecord(t *testing.T) {
	fs := afero.NewMemMapFs()
	a := &app{fs: fs, logger: zap.NewNop()}
	mgr := recorder.NewManager(recorder.Options{OutputDir: "/rec"}, fs,
		func() recorder.Engine { return &fakeEngine{} }, nil)

	var out bytes.Buffer
	err := a.record(context.Background(), mgr, "https://example.com", "", strings.NewReader("\n"), &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Recording https://example.com")
	assert.Contains(t, out.String(), "steps: 1, scroll steps: 0")

	scripts, err := afero.Glob(fs, "/rec/*.js")
	require.NoError(t, err)
	assert.Len(t, scripts, 1)
}

func TestRecord_Interrupted(t *testing.T) {
	fs := afero.NewMemMapFs()
	a := &app{fs: fs, logger: zap.NewNop()}
	mgr := recorder.NewManager(recorder.Options{OutputDir: "/rec"}, fs,
		func() recorder.Engine { return &fakeEngine{} }, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out bytes.Buffer
	require.NoError(t, a.record(ctx, mgr, "https://example.com", "", strings.NewReader(""), &out))
	assert.Contains(t, out.String(), "Saved /rec/playwright-recording-")
}

type fakePlayer struct{ result *executor.Result }

func (p fakePlayer) Replay(context.Context, models.ScrollData, string) *executor.Result {
	return p.result
}

func TestReplay(t *testing.T) {
	fs := afero.NewMemMapFs()
	raw, err := json.Marshal(models.ScrollData{URL: "https://example.com"})
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, "/rec/a.scroll.json", raw, 0o644))
	a := &app{fs: fs, logger: zap.NewNop()}

	now := time.Now()
	passed := &executor.Result{
		Success:   true,
		StartTime: now,
		EndTime:   now.Add(1500 * time.Millisecond),
		Logs:      []models.ReplayLog{{Level: "info", Message: "[1/1] Click #go", Duration: 40}},
	}
	var out bytes.Buffer
	require.NoError(t, a.replay(context.Background(), fakePlayer{passed}, "/rec/a.scroll.json", "", &out))
	assert.Contains(t, out.String(), "[1/1] Click #go (40ms)")
	assert.Contains(t, out.String(), "Replay passed in 1.5s")

	failed := &executor.Result{ErrorMessage: "step 1 failed: timeout"}
	out.Reset()
	err = a.replay(context.Background(), fakePlayer{failed}, "/rec/a.scroll.json", "", &out)
	assert.EqualError(t, err, "step 1 failed: timeout")
}
