package ui

import (
	"fmt"

	"preval/internal/output"
	"preval/internal/state"
	"preval/pkg/evaltypes"
)

// PlainRenderer reports a run as a log of lines for non-interactive output.
// It prints status changes, finished samples and progress, never redrawing.
type PlainRenderer struct {
	printer *output.Printer

	lastPhase    evaltypes.StatusPhase
	started      bool
	lastReceived int
	printed      map[string]evaltypes.SampleStatus
	summarized   bool
}

// NewPlainRenderer creates a renderer writing through printer.
func NewPlainRenderer(printer *output.Printer) *PlainRenderer {
	if printer == nil {
		printer = output.NewPrinter(output.PlainText())
	}
	return &PlainRenderer{
		printer: printer,
		printed: make(map[string]evaltypes.SampleStatus),
	}
}

// Render prints whatever changed since the previous call.
func (p *PlainRenderer) Render(view state.View) error {
	status := view.Status()
	if !p.started || status.Phase != p.lastPhase {
		p.started = true
		p.lastPhase = status.Phase
		p.printStatus(view, status)
	}

	for _, sample := range view.RecentSamples() {
		if sample.Status == evaltypes.SampleProcessing {
			continue
		}
		if prev, ok := p.printed[sample.SampleID]; ok && prev == sample.Status {
			continue
		}
		p.printed[sample.SampleID] = sample.Status
		if sample.Status == evaltypes.SampleFailed {
			p.printer.Error(SampleLine(sample))
		} else {
			p.printer.Success(SampleLine(sample))
		}
	}

	if received := view.Progress().Completed; received != p.lastReceived {
		p.lastReceived = received
		p.printer.Progress(ProgressLine(view))
	}

	if view.IsTerminal() && !p.summarized {
		p.summarized = true
		p.printer.Muted(SummaryLine(view))
	}
	return nil
}

func (p *PlainRenderer) printStatus(view state.View, status evaltypes.EvaluationStatus) {
	switch status.Phase {
	case evaltypes.PhaseStarting:
		p.printer.Info("Starting evaluator...")
	case evaltypes.PhaseWaitingForHandshake:
		p.printer.Info("Waiting for handshake...")
	case evaltypes.PhaseCollectingMetrics:
		msg := "Collecting metrics"
		if hs := view.Handshake(); hs != nil {
			msg = fmt.Sprintf("Handshake received from %s (%s, protocol v%s)", hs.Evaluator.Name, hs.Mode, hs.Version)
			if total := hs.TotalSamples(); total != nil {
				msg += fmt.Sprintf(", %d samples planned", *total)
			}
		}
		p.printer.Info(msg)
	case evaltypes.PhaseCompleted:
		p.printer.Success("Evaluation completed")
	case evaltypes.PhaseFailed:
		p.printer.Error("Evaluation failed: " + status.Reason)
	}
}
