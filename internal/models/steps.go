package models

type Action string

const (
	ActionClick  Action = "click"
	ActionInput  Action = "input"
	ActionScroll Action = "scroll"
)

// CapturedStep is one user action observed in the page. X and Y are only
// set for clicks, Value only for inputs.
type CapturedStep struct {
	Action    Action  `json:"action"`
	Selector  string  `json:"selector"`
	Value     string  `json:"value,omitempty"`
	X         float64 `json:"x,omitempty"`
	Y         float64 `json:"y,omitempty"`
	Timestamp int64   `json:"timestamp"`
}

// ScrollSample is a raw window.scrollY reading.
type ScrollSample struct {
	ScrollY   float64 `json:"scrollY"`
	Timestamp int64   `json:"timestamp"`
}

// ScrollStep is a relative scroll derived from two recorded samples.
type ScrollStep struct {
	Action      Action  `json:"action"`
	Pixels      float64 `json:"pixels"`
	Command     string  `json:"command"`
	Description string  `json:"description"`
	Timestamp   int64   `json:"timestamp"`
}

// ScrollData is the side-car document written next to every generated script.
type ScrollData struct {
	URL         string         `json:"url"`
	Timestamp   int64          `json:"timestamp"`
	Positions   []ScrollSample `json:"positions"`
	ScrollSteps []ScrollStep   `json:"scrollSteps"`
	Steps       []CapturedStep `json:"steps,omitempty"`
}
