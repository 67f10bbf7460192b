package state

import (
	"time"

	"preval/pkg/evaltypes"
)

// View is the read-only projection of State consumed by renderers and reports.
type View interface {
	RunID() string
	EvaluatorName() string
	Handshake() *evaltypes.ValidatedHandshake
	Status() evaltypes.EvaluationStatus
	Metrics() []*evaltypes.MetricData
	IsPaused() bool
	RecentSamples() []evaltypes.SampleResult
	CurrentSample() string
	ElapsedTime() time.Duration
	ETA() (time.Duration, bool)
	Progress() Progress
	SummaryStats() SummaryStats
	IsTerminal() bool
	ResourceAttributes() evaltypes.Attributes
}

var _ View = (*State)(nil)

// RunID returns the unique identifier of this run.
func (s *State) RunID() string { return s.runID }

// EvaluatorName returns the evaluator label, or "" before it is set.
func (s *State) EvaluatorName() string {
	if s.evaluatorName == nil {
		return ""
	}
	return s.evaluatorName.String()
}

// Handshake returns the recorded handshake, or nil before it arrives.
func (s *State) Handshake() *evaltypes.ValidatedHandshake { return s.handshake }

// Status returns the current status.
func (s *State) Status() evaltypes.EvaluationStatus { return s.status }

// Metrics returns every ingested message in arrival order.
func (s *State) Metrics() []*evaltypes.MetricData {
	out := make([]*evaltypes.MetricData, len(s.metrics))
	copy(out, s.metrics)
	return out
}

// IsPaused reports the display pause flag.
func (s *State) IsPaused() bool { return s.paused }

// RecentSamples returns copies of the most recent sample records, oldest first.
func (s *State) RecentSamples() []evaltypes.SampleResult {
	ids := s.recent.Items()
	out := make([]evaltypes.SampleResult, 0, len(ids))
	for _, id := range ids {
		rec := *s.samples[id]
		rec.Metrics = append([]evaltypes.MetricValue(nil), rec.Metrics...)
		out = append(out, rec)
	}
	return out
}

// CurrentSample returns the id of the most recently updated sample.
func (s *State) CurrentSample() string { return s.currentSample }

// ElapsedTime returns the time since the run started.
func (s *State) ElapsedTime() time.Duration { return s.now().Sub(s.startedAt) }

// ETA returns the estimated time remaining, if one can be computed.
func (s *State) ETA() (time.Duration, bool) {
	return s.eta.Estimate(s.now(), s.received, s.handshake.TotalSamples())
}

// Progress returns completion figures.
func (s *State) Progress() Progress {
	p := Progress{Completed: s.received, Total: s.handshake.TotalSamples()}
	if p.Total != nil && *p.Total > 0 {
		p.Percentage = float64(p.Completed) / float64(*p.Total) * 100
		if p.Percentage > 100 {
			p.Percentage = 100
		}
	}
	return p
}

// SummaryStats counts failed samples over all samples seen.
func (s *State) SummaryStats() SummaryStats {
	stats := SummaryStats{Total: len(s.samples)}
	for _, id := range s.sampleOrder {
		if s.samples[id].Status == evaltypes.SampleFailed {
			stats.Failed++
		}
	}
	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.Total-stats.Failed) / float64(stats.Total) * 100
	}
	return stats
}

// IsTerminal reports whether the run reached Completed or Failed.
func (s *State) IsTerminal() bool { return s.status.IsTerminal() }

// ResourceAttributes returns the resource attributes merged across every
// message, later values overwriting earlier ones.
func (s *State) ResourceAttributes() evaltypes.Attributes {
	out := make(evaltypes.Attributes, len(s.resourceAttributes))
	for k, v := range s.resourceAttributes {
		out[k] = v
	}
	return out
}
