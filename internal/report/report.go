// Package report exports a snapshot of a finished (or interrupted) run as
// YAML, JSON or Markdown.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"preval/internal/state"
	"preval/pkg/evaltypes"

	"gopkg.in/yaml.v3"
)

// Format is an output encoding of a Report.
type Format string

// Supported formats.
const (
	FormatYAML     Format = "yaml"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// ErrUnknownFormat is returned for a format or file extension that has no encoder.
var ErrUnknownFormat = errors.New("unknown report format")

// FormatForPath picks the format from a file extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".md", ".markdown":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("%w: %q (use .yaml, .json or .md)", ErrUnknownFormat, filepath.Ext(path))
	}
}

// Report is the exported run snapshot.
type Report struct {
	RunID          string    `json:"run_id" yaml:"run_id"`
	Evaluator      string    `json:"evaluator,omitempty" yaml:"evaluator,omitempty"`
	Status         string    `json:"status" yaml:"status"`
	Reason         string    `json:"reason,omitempty" yaml:"reason,omitempty"`
	Interrupted    bool      `json:"interrupted" yaml:"interrupted"`
	GeneratedAt    time.Time `json:"generated_at" yaml:"generated_at"`
	ElapsedSeconds float64   `json:"elapsed_seconds" yaml:"elapsed_seconds"`

	Handshake *evaltypes.ValidatedHandshake `json:"handshake,omitempty" yaml:"handshake,omitempty"`

	Progress Progress `json:"progress" yaml:"progress"`
	Summary  Summary  `json:"summary" yaml:"summary"`

	Metrics        []MetricStats     `json:"metrics" yaml:"metrics"`
	SummaryMetrics []SummaryMetric   `json:"summary_metrics,omitempty" yaml:"summary_metrics,omitempty"`
	RecentSamples  []Sample          `json:"recent_samples" yaml:"recent_samples"`
	Resource       map[string]string `json:"resource,omitempty" yaml:"resource,omitempty"`
}

// Progress mirrors state.Progress.
type Progress struct {
	Completed  int     `json:"completed" yaml:"completed"`
	Total      *int    `json:"total,omitempty" yaml:"total,omitempty"`
	Percentage float64 `json:"percentage" yaml:"percentage"`
}

// Summary mirrors state.SummaryStats.
type Summary struct {
	Failed      int     `json:"failed" yaml:"failed"`
	Total       int     `json:"total" yaml:"total"`
	SuccessRate float64 `json:"success_rate" yaml:"success_rate"`
}

// MetricStats aggregates the latest value of one sample metric across messages.
type MetricStats struct {
	Name  string  `json:"name" yaml:"name"`
	Kind  string  `json:"kind" yaml:"kind"`
	Unit  string  `json:"unit,omitempty" yaml:"unit,omitempty"`
	Count int     `json:"count" yaml:"count"`
	Mean  float64 `json:"mean" yaml:"mean"`
	Min   float64 `json:"min" yaml:"min"`
	Max   float64 `json:"max" yaml:"max"`
}

// SummaryMetric is the last reported value of a run-level metric.
type SummaryMetric struct {
	Name  string  `json:"name" yaml:"name"`
	Value float64 `json:"value" yaml:"value"`
}

// Sample is one recent sample record.
type Sample struct {
	ID          string             `json:"id" yaml:"id"`
	Status      string             `json:"status" yaml:"status"`
	Reason      string             `json:"reason,omitempty" yaml:"reason,omitempty"`
	Metrics     map[string]float64 `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	CompletedAt *time.Time         `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
}

// Build snapshots view. interrupted marks a run the user quit before it finished.
func Build(view state.View, interrupted bool, generatedAt time.Time) *Report {
	status := view.Status()
	progress := view.Progress()
	stats := view.SummaryStats()

	r := &Report{
		RunID:          view.RunID(),
		Evaluator:      view.EvaluatorName(),
		Status:         status.Phase.String(),
		Reason:         status.Reason,
		Interrupted:    interrupted,
		GeneratedAt:    generatedAt.UTC(),
		ElapsedSeconds: math.Round(view.ElapsedTime().Seconds()*1000) / 1000,
		Handshake:      view.Handshake(),
		Progress:       Progress{Completed: progress.Completed, Total: progress.Total, Percentage: progress.Percentage},
		Summary:        Summary{Failed: stats.Failed, Total: stats.Total, SuccessRate: stats.SuccessRate},
		RecentSamples:  samples(view.RecentSamples()),
	}
	if r.Evaluator == "" && r.Handshake != nil {
		r.Evaluator = r.Handshake.Evaluator.Name
	}
	r.Metrics, r.SummaryMetrics = aggregate(view.Metrics())

	if attrs := view.ResourceAttributes(); len(attrs) > 0 {
		r.Resource = make(map[string]string, len(attrs))
		for k, v := range attrs {
			r.Resource[k] = v.String()
		}
	}
	return r
}

func samples(recent []evaltypes.SampleResult) []Sample {
	out := make([]Sample, 0, len(recent))
	for _, s := range recent {
		sample := Sample{ID: s.SampleID, Status: s.Status.String(), Reason: s.Reason}
		if len(s.Metrics) > 0 {
			sample.Metrics = make(map[string]float64, len(s.Metrics))
			for _, m := range s.Metrics {
				sample.Metrics[m.Name] = m.Value
			}
		}
		if !s.CompletedAt.IsZero() {
			at := s.CompletedAt.UTC()
			sample.CompletedAt = &at
		}
		out = append(out, sample)
	}
	return out
}

func aggregate(messages []*evaltypes.MetricData) ([]MetricStats, []SummaryMetric) {
	byName := map[string]*MetricStats{}
	summaries := map[string]float64{}

	for _, md := range messages {
		for i := range md.Metrics {
			m := &md.Metrics[i]
			value, ok := m.LatestValue()
			if !ok {
				continue
			}
			if m.Category == evaltypes.CategorySummary {
				summaries[m.Name] = value
				continue
			}
			st, ok := byName[m.Name]
			if !ok {
				st = &MetricStats{Name: m.Name, Kind: m.Kind.String(), Unit: m.Unit, Min: value, Max: value}
				byName[m.Name] = st
			}
			st.Count++
			// Running mean stays finite for any finite inputs.
			n := float64(st.Count)
			st.Mean += value/n - st.Mean/n
			st.Min = math.Min(st.Min, value)
			st.Max = math.Max(st.Max, value)
		}
	}

	stats := make([]MetricStats, 0, len(byName))
	for _, st := range byName {
		stats = append(stats, *st)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })

	var summary []SummaryMetric
	for name, value := range summaries {
		summary = append(summary, SummaryMetric{Name: name, Value: value})
	}
	sort.Slice(summary, func(i, j int) bool { return summary[i].Name < summary[j].Name })
	return stats, summary
}

// Write encodes r to w in format f.
func (r *Report) Write(w io.Writer, f Format) error {
	switch f {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatMarkdown:
		_, err := io.WriteString(w, r.Markdown())
		return err
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
}

// WriteFile writes r to path in the format implied by its extension.
func (r *Report) WriteFile(path string) error {
	format, err := FormatForPath(path)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating report dir: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}
	if err := r.Write(f, format); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
