package ui

import (
	"fmt"
	"strings"
	"time"

	"preval/internal/state"
	"preval/pkg/evaltypes"
)

const (
	appName          = "PrEval"
	maxSampleMetrics = 3
)

// FormatDuration renders d as m:ss.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// HeaderTitle names the app and, when known, the evaluator.
func HeaderTitle(view state.View) string {
	if hs := view.Handshake(); hs != nil {
		return appName + " - " + hs.Evaluator.Name
	}
	if name := view.EvaluatorName(); name != "" {
		return appName + " - " + name
	}
	return appName
}

// HeaderSubtitle describes the evaluator once the handshake is known.
func HeaderSubtitle(view state.View) string {
	hs := view.Handshake()
	if hs == nil {
		return ""
	}
	if hs.Evaluator.Description != "" {
		return fmt.Sprintf("%s  •  Protocol v%s", hs.Evaluator.Description, hs.Version)
	}
	return "Protocol v" + hs.Version
}

// ProgressLine reports completion and, when available, the ETA.
func ProgressLine(view state.View) string {
	p := view.Progress()
	var line string
	if p.Total != nil {
		line = fmt.Sprintf("Progress: %d/%d samples (%.1f%%)", p.Completed, *p.Total, p.Percentage)
	} else {
		line = fmt.Sprintf("Progress: %d samples", p.Completed)
	}
	if eta, ok := view.ETA(); ok {
		line += " - ETA: " + FormatDuration(eta)
	}
	return line
}

// ProgressBar draws a bar of width cells filled to percentage.
func ProgressBar(percentage float64, width int) string {
	if width <= 0 {
		return ""
	}
	if percentage < 0 {
		percentage = 0
	}
	if percentage > 100 {
		percentage = 100
	}
	filled := int(percentage / 100 * float64(width))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// CurrentLine names the sample most recently reported.
func CurrentLine(view state.View) string {
	if id := view.CurrentSample(); id != "" {
		return fmt.Sprintf("Current: %s (processing...)", id)
	}
	return "Current: (none)"
}

// SampleIcon returns the status marker of a sample.
func SampleIcon(status evaltypes.SampleStatus) string {
	switch status {
	case evaltypes.SampleCompleted:
		return "✓"
	case evaltypes.SampleFailed:
		return "✗"
	default:
		return "⟳"
	}
}

// SampleLine renders one sample with up to three of its metrics.
func SampleLine(sample evaltypes.SampleResult) string {
	var b strings.Builder
	b.WriteString(SampleIcon(sample.Status))
	b.WriteString(" ")
	b.WriteString(sample.SampleID)

	if len(sample.Metrics) > 0 {
		b.WriteString(": ")
		for i, m := range sample.Metrics {
			if i == maxSampleMetrics {
				break
			}
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%.2f", m.Name, m.Value)
		}
	}
	if sample.Status == evaltypes.SampleFailed && sample.Reason != "" {
		fmt.Fprintf(&b, " (%s)", sample.Reason)
	}
	return b.String()
}

// SummaryLine aggregates sample outcomes and elapsed time.
func SummaryLine(view state.View) string {
	stats := view.SummaryStats()
	elapsed := FormatDuration(view.ElapsedTime())
	if stats.Total == 0 {
		return "Summary: No samples completed | Elapsed: " + elapsed
	}
	return fmt.Sprintf("Summary: %d/%d failed (%.1f%% success rate) | Elapsed: %s",
		stats.Failed, stats.Total, stats.SuccessRate, elapsed)
}

// StatusLine describes the evaluation status.
func StatusLine(status evaltypes.EvaluationStatus) string {
	switch status.Phase {
	case evaltypes.PhaseStarting:
		return "Status: Starting evaluator..."
	case evaltypes.PhaseWaitingForHandshake:
		return "Status: Waiting for handshake..."
	case evaltypes.PhaseCollectingMetrics:
		if status.Total != nil {
			return fmt.Sprintf("Status: Collecting metrics... (%d/%d)", status.Received, *status.Total)
		}
		return fmt.Sprintf("Status: Collecting metrics... (%d)", status.Received)
	case evaltypes.PhaseCompleted:
		return "Status: Evaluation completed"
	case evaltypes.PhaseFailed:
		return "Status: Failed - " + status.Reason
	default:
		return "Status: " + status.String()
	}
}

// FooterLine lists the key bindings.
func FooterLine(paused bool) string {
	if paused {
		return "[q] Quit  [Space] Resume  [Ctrl+L] Refresh"
	}
	return "[q] Quit  [Space] Pause  [Ctrl+L] Refresh"
}
