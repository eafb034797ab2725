package scroll

import (
	"fmt"
	"math"
	"strconv"

	"autoqa/backend/internal/models"
)

// DefaultThreshold is the smallest vertical movement, in pixels, that counts
// as a scroll. It applies both when sampling and when aggregating.
const DefaultThreshold = 100.0

// Aggregate folds raw samples into relative scroll steps. The baseline starts
// at the top of the page and only moves when a step is emitted, so several
// small movements add up until they cross the threshold.
func Aggregate(samples []models.ScrollSample, threshold float64) []models.ScrollStep {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	steps := make([]models.ScrollStep, 0, len(samples))
	previousY := 0.0
	for _, sample := range samples {
		diff := sample.ScrollY - previousY
		if math.Abs(diff) < threshold {
			continue
		}
		steps = append(steps, NewStep(diff, sample.Timestamp))
		previousY = sample.ScrollY
	}
	return steps
}

func NewStep(pixels float64, timestamp int64) models.ScrollStep {
	amount := FormatPixels(pixels)
	return models.ScrollStep{
		Action:      models.ActionScroll,
		Pixels:      pixels,
		Command:     fmt.Sprintf("scrollByAmount(page, %s);", amount),
		Description: fmt.Sprintf("Scroll by %s pixels", amount),
		Timestamp:   timestamp,
	}
}

// FormatPixels renders a pixel amount without a trailing ".0" for whole numbers.
func FormatPixels(pixels float64) string {
	return strconv.FormatFloat(pixels, 'f', -1, 64)
}

// Filter drops samples that moved less than the threshold from the last
// accepted one. It is not safe for concurrent use.
type Filter struct {
	threshold float64
	last      float64
}

func NewFilter(threshold float64) *Filter {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Filter{threshold: threshold}
}

// Accept reports whether y should be recorded and, if so, makes it the new
// baseline.
func (f *Filter) Accept(y float64) bool {
	if math.Abs(y-f.last) < f.threshold {
		return false
	}
	f.last = y
	return true
}

func (f *Filter) Reset() {
	f.last = 0
}
