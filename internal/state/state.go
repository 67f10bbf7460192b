// Package state holds the evaluation state of one run and enforces its
// transition rules. The orchestrator is its only writer; renderers read it
// through View.
package state

import (
	"errors"
	"fmt"
	"time"

	"preval/pkg/evaltypes"

	"github.com/google/uuid"
)

// RecentSamplesCapacity is the number of samples kept for display.
const RecentSamplesCapacity = 10

var (
	// ErrEvaluatorAlreadySet is returned by a second SetEvaluatorName call.
	ErrEvaluatorAlreadySet = errors.New("evaluator name already set")
	// ErrHandshakeAlreadySet is returned by a second SetHandshake call.
	ErrHandshakeAlreadySet = errors.New("handshake already set")
	// ErrInvalidTransition is returned when a status would move back to Starting.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrTerminalState is returned for any transition out of Completed or Failed.
	ErrTerminalState = errors.New("evaluation already finished")
	// ErrNotCollecting is returned when metrics arrive outside CollectingMetrics.
	ErrNotCollecting = errors.New("not collecting metrics")
	// ErrNilMetrics is returned when AddMetrics receives no data.
	ErrNilMetrics = errors.New("metric data is nil")
)

// Progress is the aggregate completion of a run.
type Progress struct {
	Completed  int
	Total      *int
	Percentage float64 // 0 when the total is unknown
}

// SummaryStats aggregates sample outcomes.
type SummaryStats struct {
	Failed      int
	Total       int
	SuccessRate float64 // percent; 0 when no samples were seen
}

// Option configures a State.
type Option func(*State)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(s *State) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRunID sets the run identifier instead of generating one.
func WithRunID(id string) Option {
	return func(s *State) {
		if id != "" {
			s.runID = id
		}
	}
}

// State is the mutable evaluation state of one run. It is not safe for
// concurrent use.
type State struct {
	now       func() time.Time
	runID     string
	startedAt time.Time

	evaluatorName *evaltypes.EvaluatorName
	handshake     *evaltypes.ValidatedHandshake
	status        evaltypes.EvaluationStatus
	paused        bool

	metrics            []*evaltypes.MetricData
	resourceAttributes evaltypes.Attributes

	received      int
	samples       map[string]*evaltypes.SampleResult
	sampleOrder   []string
	recent        *Ring[string]
	currentSample string

	eta *EtaCalculator
}

// New creates the state of a run starting now.
func New(opts ...Option) *State {
	s := &State{
		now:                time.Now,
		status:             evaltypes.StatusStarting(),
		resourceAttributes: evaltypes.Attributes{},
		samples:            make(map[string]*evaltypes.SampleResult),
		recent:             NewRing[string](RecentSamplesCapacity),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.runID == "" {
		s.runID = uuid.New().String()
	}
	s.startedAt = s.now()
	s.eta = NewEtaCalculator(s.startedAt)
	return s
}

// SetEvaluatorName records the evaluator label. It succeeds once.
func (s *State) SetEvaluatorName(name evaltypes.EvaluatorName) error {
	if s.evaluatorName != nil {
		return ErrEvaluatorAlreadySet
	}
	s.evaluatorName = &name
	return nil
}

// SetHandshake records the validated handshake. It succeeds once.
func (s *State) SetHandshake(h *evaltypes.ValidatedHandshake) error {
	if s.handshake != nil {
		return ErrHandshakeAlreadySet
	}
	if h == nil {
		return errors.New("handshake is nil")
	}
	s.handshake = h
	return nil
}

// UpdateStatus replaces the status. Starting can never be re-entered and
// terminal statuses accept no further transitions; any other move is allowed.
func (s *State) UpdateStatus(next evaltypes.EvaluationStatus) error {
	if s.status.IsTerminal() {
		return fmt.Errorf("%w: cannot move from %s to %s", ErrTerminalState, s.status.Phase, next.Phase)
	}
	if next.Phase == evaltypes.PhaseStarting {
		return fmt.Errorf("%w: cannot re-enter %s", ErrInvalidTransition, next.Phase)
	}
	s.status = next
	return nil
}

// AddMetrics ingests one decoded metrics message. Only sample messages count
// toward progress; summary messages are stored but never counted.
func (s *State) AddMetrics(md *evaltypes.MetricData) error {
	if s.status.Phase != evaltypes.PhaseCollectingMetrics {
		return fmt.Errorf("%w: status is %s", ErrNotCollecting, s.status.Phase)
	}
	if md == nil {
		return ErrNilMetrics
	}

	for k, v := range md.ResourceAttributes {
		s.resourceAttributes[k] = v
	}

	if !md.IsSummary() {
		now := s.now()
		s.recordSample(md, now)
		s.received++
		s.eta.Record(now, s.received)
	}

	s.metrics = append(s.metrics, md)
	s.status = evaltypes.StatusCollecting(s.received, s.handshake.TotalSamples())
	return nil
}

// TogglePause flips the display pause flag. Metric intake is unaffected.
func (s *State) TogglePause() {
	s.paused = !s.paused
}

func (s *State) recordSample(md *evaltypes.MetricData, now time.Time) {
	id := sampleID(md, s.received+1)

	rec, ok := s.samples[id]
	if !ok {
		rec = &evaltypes.SampleResult{SampleID: id}
		s.samples[id] = rec
		s.sampleOrder = append(s.sampleOrder, id)
	}

	rec.Status, rec.Reason = sampleStatus(md)
	rec.Metrics = mergeMetricValues(rec.Metrics, md)
	if rec.Status != evaltypes.SampleProcessing {
		rec.CompletedAt = now
	}

	if !s.inRecent(id) {
		s.recent.Push(id)
	}
	s.currentSample = id
}

func (s *State) inRecent(id string) bool {
	for i := 0; i < s.recent.Len(); i++ {
		if s.recent.At(i) == id {
			return true
		}
	}
	return false
}

func sampleID(md *evaltypes.MetricData, ordinal int) string {
	if v, ok := md.FindAttribute(evaltypes.AttrSampleID); ok {
		if id := v.String(); id != "" {
			return id
		}
	}
	return fmt.Sprintf("sample-%d", ordinal)
}

// sampleStatus derives a sample's outcome from its data point attributes.
func sampleStatus(md *evaltypes.MetricData) (evaltypes.SampleStatus, string) {
	reason := ""
	if v, ok := md.FindAttribute(evaltypes.AttrError); ok {
		reason = v.String()
	}

	if v, ok := md.FindAttribute(evaltypes.AttrSampleStatus); ok {
		switch v.String() {
		case "failed", "error":
			if reason == "" {
				reason = "failed"
			}
			return evaltypes.SampleFailed, reason
		case "processing", "running":
			return evaltypes.SampleProcessing, ""
		}
	}
	if reason != "" {
		return evaltypes.SampleFailed, reason
	}
	return evaltypes.SampleCompleted, ""
}

func mergeMetricValues(existing []evaltypes.MetricValue, md *evaltypes.MetricData) []evaltypes.MetricValue {
	for i := range md.Metrics {
		value, ok := md.Metrics[i].LatestValue()
		if !ok {
			continue
		}
		name := md.Metrics[i].Name
		replaced := false
		for j := range existing {
			if existing[j].Name == name {
				existing[j].Value = value
				replaced = true
				break
			}
		}
		if !replaced {
			existing = append(existing, evaltypes.MetricValue{Name: name, Value: value})
		}
	}
	return existing
}
