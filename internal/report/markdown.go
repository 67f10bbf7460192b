package report

import (
	"fmt"
	"sort"
	"strings"
)

// Markdown renders the report as a Markdown document.
func (r *Report) Markdown() string {
	var b strings.Builder

	title := "PrEval run"
	if r.Evaluator != "" {
		title += ": " + r.Evaluator
	}
	fmt.Fprintf(&b, "# %s\n\n", title)

	status := r.Status
	if r.Reason != "" {
		status += " (" + r.Reason + ")"
	}
	if r.Interrupted {
		status += ", interrupted"
	}
	fmt.Fprintf(&b, "- **Status:** %s\n", status)
	fmt.Fprintf(&b, "- **Run ID:** `%s`\n", r.RunID)
	if r.Handshake != nil {
		fmt.Fprintf(&b, "- **Mode:** %s, protocol v%s\n", r.Handshake.Mode, r.Handshake.Version)
	}
	if r.Progress.Total != nil {
		fmt.Fprintf(&b, "- **Progress:** %d/%d samples (%.1f%%)\n", r.Progress.Completed, *r.Progress.Total, r.Progress.Percentage)
	} else {
		fmt.Fprintf(&b, "- **Progress:** %d samples\n", r.Progress.Completed)
	}
	if r.Summary.Total > 0 {
		fmt.Fprintf(&b, "- **Failed:** %d/%d (%.1f%% success rate)\n", r.Summary.Failed, r.Summary.Total, r.Summary.SuccessRate)
	}
	fmt.Fprintf(&b, "- **Elapsed:** %.1fs\n", r.ElapsedSeconds)

	if len(r.Metrics) > 0 {
		b.WriteString("\n## Metrics\n\n")
		b.WriteString("| Metric | Kind | Count | Mean | Min | Max |\n")
		b.WriteString("|---|---|---|---|---|---|\n")
		for _, m := range r.Metrics {
			fmt.Fprintf(&b, "| %s | %s | %d | %.3f | %.3f | %.3f |\n", m.Name, m.Kind, m.Count, m.Mean, m.Min, m.Max)
		}
	}

	if len(r.SummaryMetrics) > 0 {
		b.WriteString("\n## Summary metrics\n\n")
		for _, m := range r.SummaryMetrics {
			fmt.Fprintf(&b, "- %s: %.3f\n", m.Name, m.Value)
		}
	}

	if len(r.RecentSamples) > 0 {
		b.WriteString("\n## Recent samples\n\n")
		b.WriteString("| Sample | Status | Metrics |\n")
		b.WriteString("|---|---|---|\n")
		for _, s := range r.RecentSamples {
			status := s.Status
			if s.Reason != "" {
				status += ": " + s.Reason
			}
			fmt.Fprintf(&b, "| %s | %s | %s |\n", s.ID, status, metricList(s.Metrics))
		}
	}
	return b.String()
}

func metricList(metrics map[string]float64) string {
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%.2f", name, metrics[name])
	}
	return strings.Join(parts, ", ")
}
