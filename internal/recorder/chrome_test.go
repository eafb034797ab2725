package recorder

import (
	"testing"

	"github.com/dop251/goja/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoqa/backend/internal/models"
)

type recordingSink struct {
	steps   []models.CapturedStep
	scrolls []models.ScrollSample
}

func (r *recordingSink) OnStep(step models.CapturedStep) { r.steps = append(r.steps, step) }

func (r *recordingSink) OnScroll(y float64, ts int64) {
	r.scrolls = append(r.scrolls, models.ScrollSample{ScrollY: y, Timestamp: ts})
}

func TestDispatchBinding(t *testing.T) {
	sink := &recordingSink{}

	require.NoError(t, dispatchBinding(sink, BindingStep,
		`{"action":"click","selector":"#buy","x":12.5,"y":40,"timestamp":1700000000000}`))
	require.NoError(t, dispatchBinding(sink, BindingStep,
		`{"action":"input","selector":"input[name=\"q\"]","value":"shoes","timestamp":1700000000100}`))
	require.NoError(t, dispatchBinding(sink, BindingScroll, `{"scrollY":420,"timestamp":1700000000200}`))

	require.Len(t, sink.steps, 2)
	assert.Equal(t, models.CapturedStep{
		Action: models.ActionClick, Selector: "#buy", X: 12.5, Y: 40, Timestamp: 1700000000000,
	}, sink.steps[0])
	assert.Equal(t, `input[name="q"]`, sink.steps[1].Selector)
	assert.Equal(t, "shoes", sink.steps[1].Value)
	assert.Equal(t, []models.ScrollSample{{ScrollY: 420, Timestamp: 1700000000200}}, sink.scrolls)
}

func TestDispatchBinding_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		binding string
		payload string
	}{
		{"bad step json", BindingStep, `{"action":`},
		{"unsupported action", BindingStep, `{"action":"hover","selector":"#a","timestamp":1}`},
		{"bad scroll json", BindingScroll, `[1,2]`},
		{"unknown binding", "recordSomething", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &recordingSink{}
			assert.Error(t, dispatchBinding(sink, tt.binding, tt.payload))
			assert.Empty(t, sink.steps)
			assert.Empty(t, sink.scrolls)
		})
	}
}

func TestRecordingScript(t *testing.T) {
	src := recordingScript()

	assert.NotContains(t, src, "__DEBOUNCE__")
	assert.NotContains(t, src, "__STEP__")
	assert.Contains(t, src, "send('recordStep'")
	assert.Contains(t, src, "send('recordScroll'")
	assert.Contains(t, src, "window.__autoqaSelectors")

	_, err := parser.ParseFile(nil, "capture.js", src, 0)
	require.NoError(t, err)
}
