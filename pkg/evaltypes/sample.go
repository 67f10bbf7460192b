package evaltypes

import "time"

// SampleStatus is the processing status of one evaluated sample.
type SampleStatus int

// Sample statuses.
const (
	SampleProcessing SampleStatus = iota
	SampleCompleted
	SampleFailed
)

func (s SampleStatus) String() string {
	switch s {
	case SampleCompleted:
		return "completed"
	case SampleFailed:
		return "failed"
	default:
		return "processing"
	}
}

// MetricValue is one extracted (name, value) pair shown for a sample.
type MetricValue struct {
	Name  string
	Value float64
}

// SampleResult is the bookkeeping record for one sample id.
type SampleResult struct {
	SampleID    string
	Status      SampleStatus
	Reason      string // set when Status is SampleFailed
	Metrics     []MetricValue
	CompletedAt time.Time
}

// UIActionKind tags the variant of a UIAction.
type UIActionKind int

// UI action kinds.
const (
	ActionQuit UIActionKind = iota
	ActionTogglePause
	ActionResize
	ActionRefresh
)

// UIAction is an abstract user input event consumed by the orchestrator.
type UIAction struct {
	Kind   UIActionKind
	Width  int // only for ActionResize
	Height int // only for ActionResize
}

// Quit requests the run to stop.
func Quit() UIAction { return UIAction{Kind: ActionQuit} }

// TogglePause flips the display pause flag.
func TogglePause() UIAction { return UIAction{Kind: ActionTogglePause} }

// Resize reports new terminal geometry.
func Resize(width, height int) UIAction {
	return UIAction{Kind: ActionResize, Width: width, Height: height}
}

// Refresh requests a full redraw.
func Refresh() UIAction { return UIAction{Kind: ActionRefresh} }
