package scroll

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoqa/backend/internal/models"
)

func samples(ys ...float64) []models.ScrollSample {
	out := make([]models.ScrollSample, len(ys))
	for i, y := range ys {
		out[i] = models.ScrollSample{ScrollY: y, Timestamp: int64(1000 + i*10)}
	}
	return out
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name      string
		input     []models.ScrollSample
		wantPx    []float64
		wantTimes []int64
	}{
		{
			name:      "sub-threshold deltas are absorbed",
			input:     samples(0, 50, 90, 205),
			wantPx:    []float64{205},
			wantTimes: []int64{1030},
		},
		{
			name:      "negative deltas keep their sign",
			input:     samples(300, 100),
			wantPx:    []float64{300, -200},
			wantTimes: []int64{1000, 1010},
		},
		{
			name:      "exact threshold is emitted",
			input:     samples(100, 200),
			wantPx:    []float64{100, 100},
			wantTimes: []int64{1000, 1010},
		},
		{
			name:   "baseline does not advance on skipped samples",
			input:  samples(150, 230, 260),
			wantPx: []float64{150, 110},
			// 230 is only 80 away from 150, 260 is 110 away.
			wantTimes: []int64{1000, 1020},
		},
		{
			name:      "empty input",
			input:     nil,
			wantPx:    []float64{},
			wantTimes: []int64{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			steps := Aggregate(tt.input, DefaultThreshold)
			require.Len(t, steps, len(tt.wantPx))

			px := make([]float64, len(steps))
			times := make([]int64, len(steps))
			for i, s := range steps {
				px[i] = s.Pixels
				times[i] = s.Timestamp
				assert.Equal(t, models.ActionScroll, s.Action)
			}
			assert.Equal(t, tt.wantPx, px)
			assert.Equal(t, tt.wantTimes, times)
		})
	}
}

func TestAggregate_Deterministic(t *testing.T) {
	in := samples(0, 120, 40, 400, 390, 10)
	first := Aggregate(in, DefaultThreshold)
	second := Aggregate(in, DefaultThreshold)
	assert.Equal(t, first, second)
	for _, s := range first {
		assert.GreaterOrEqual(t, abs(s.Pixels), DefaultThreshold)
	}
}

func TestAggregate_NonPositiveThresholdUsesDefault(t *testing.T) {
	steps := Aggregate(samples(50, 150), 0)
	require.Len(t, steps, 1)
	assert.Equal(t, 150.0, steps[0].Pixels)
}

func TestNewStep(t *testing.T) {
	step := NewStep(-200, 42)
	assert.Equal(t, "scrollByAmount(page, -200);", step.Command)
	assert.Equal(t, "Scroll by -200 pixels", step.Description)
	assert.Equal(t, int64(42), step.Timestamp)

	assert.Equal(t, "120.5", FormatPixels(120.5))
}

func TestFilter(t *testing.T) {
	f := NewFilter(DefaultThreshold)

	var kept []float64
	for _, y := range []float64{30, 99, 100, 150, 201, 90, 0} {
		if f.Accept(y) {
			kept = append(kept, y)
		}
	}
	assert.Equal(t, []float64{100, 201, 90}, kept)

	f.Reset()
	assert.False(t, f.Accept(40))
	assert.True(t, f.Accept(-120))
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
