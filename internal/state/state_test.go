package state

import (
	"fmt"
	"testing"
	"time"

	"preval/internal/protocol"
	"preval/internal/testutils"
	"preval/pkg/evaltypes"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

// collecting returns a state that has received a handshake for total samples.
func collecting(t *testing.T, clock *testutils.Clock, total int) *State {
	t.Helper()
	s := New(WithClock(clock.Now), WithRunID("run-1"))

	hs, err := protocol.ParseHandshake(testutils.HandshakeLine(total))
	require.NoError(t, err)
	require.NoError(t, s.SetHandshake(hs))
	require.NoError(t, s.UpdateStatus(evaltypes.StatusWaitingForHandshake()))
	require.NoError(t, s.UpdateStatus(evaltypes.StatusCollecting(0, hs.TotalSamples())))
	return s
}

func metrics(t *testing.T, line string) *evaltypes.MetricData {
	t.Helper()
	md, err := protocol.ParseMetricsLine(line)
	require.NoError(t, err)
	return md
}

func TestNew(t *testing.T) {
	s := New()
	assert.Equal(t, evaltypes.PhaseStarting, s.Status().Phase)
	assert.NotEmpty(t, s.RunID())
	assert.Empty(t, s.EvaluatorName())
	assert.Nil(t, s.Handshake())
	assert.False(t, s.IsTerminal())

	ids := testutils.SequentialIDs()
	s = New(WithRunID(ids()))
	assert.Equal(t, "00000001-0000-4000-8000-000000000001", s.RunID())
}

func TestSetOnce(t *testing.T) {
	s := New()

	name, err := evaltypes.NewEvaluatorName("eval")
	require.NoError(t, err)
	require.NoError(t, s.SetEvaluatorName(name))
	assert.ErrorIs(t, s.SetEvaluatorName(name), ErrEvaluatorAlreadySet)
	assert.Equal(t, "eval", s.EvaluatorName())

	hs, err := protocol.ParseHandshake(testutils.HandshakeLine(3))
	require.NoError(t, err)
	require.NoError(t, s.SetHandshake(hs))
	assert.ErrorIs(t, s.SetHandshake(hs), ErrHandshakeAlreadySet)
	assert.Same(t, hs, s.Handshake())
}

func TestUpdateStatus(t *testing.T) {
	nonStarting := []evaltypes.EvaluationStatus{
		evaltypes.StatusWaitingForHandshake(),
		evaltypes.StatusCollecting(1, intPtr(2)),
		evaltypes.StatusCompleted(),
		evaltypes.StatusFailed("boom"),
	}

	t.Run("starting can never be re-entered", func(t *testing.T) {
		for _, from := range append([]evaltypes.EvaluationStatus{evaltypes.StatusStarting()}, nonStarting...) {
			s := New()
			if from.Phase != evaltypes.PhaseStarting {
				require.NoError(t, s.UpdateStatus(from))
			}
			assert.Error(t, s.UpdateStatus(evaltypes.StatusStarting()), "from %s", from)
		}
		s := New()
		assert.ErrorIs(t, s.UpdateStatus(evaltypes.StatusStarting()), ErrInvalidTransition)
	})

	t.Run("terminal statuses accept nothing", func(t *testing.T) {
		for _, terminal := range []evaltypes.EvaluationStatus{evaltypes.StatusCompleted(), evaltypes.StatusFailed("x")} {
			for _, next := range nonStarting {
				s := New()
				require.NoError(t, s.UpdateStatus(terminal))
				assert.ErrorIs(t, s.UpdateStatus(next), ErrTerminalState)
				assert.Equal(t, terminal, s.Status())
			}
		}
	})

	t.Run("non-terminal moves are unrestricted", func(t *testing.T) {
		s := New()
		require.NoError(t, s.UpdateStatus(evaltypes.StatusCollecting(0, nil)))
		require.NoError(t, s.UpdateStatus(evaltypes.StatusWaitingForHandshake()))
		require.NoError(t, s.UpdateStatus(evaltypes.StatusCompleted()))
		assert.True(t, s.IsTerminal())
	})
}

func TestAddMetrics_RequiresCollecting(t *testing.T) {
	md := &evaltypes.MetricData{}
	statuses := []evaltypes.EvaluationStatus{
		evaltypes.StatusWaitingForHandshake(),
		evaltypes.StatusCompleted(),
		evaltypes.StatusFailed("x"),
	}

	s := New()
	assert.ErrorIs(t, s.AddMetrics(md), ErrNotCollecting)

	for _, st := range statuses {
		s := New()
		require.NoError(t, s.UpdateStatus(st))
		assert.ErrorIs(t, s.AddMetrics(md), ErrNotCollecting)
		assert.Empty(t, s.Metrics())
	}

	s = New()
	require.NoError(t, s.UpdateStatus(evaltypes.StatusCollecting(0, nil)))
	assert.NoError(t, s.AddMetrics(md))
	assert.ErrorIs(t, s.AddMetrics(nil), ErrNilMetrics)
}

func TestAddMetrics_Samples(t *testing.T) {
	clock := testutils.NewClock()
	s := collecting(t, clock, 4)

	clock.Advance(time.Second)
	require.NoError(t, s.AddMetrics(metrics(t, testutils.SampleLine("s-1", 0.9))))
	clock.Advance(time.Second)
	require.NoError(t, s.AddMetrics(metrics(t, testutils.FailedSampleLine("s-2", "timeout calling model"))))

	assert.Equal(t, evaltypes.StatusCollecting(2, intPtr(4)), s.Status())
	assert.Equal(t, "s-2", s.CurrentSample())
	assert.Len(t, s.Metrics(), 2)

	recent := s.RecentSamples()
	require.Len(t, recent, 2)
	assert.Equal(t, "s-1", recent[0].SampleID)
	assert.Equal(t, evaltypes.SampleCompleted, recent[0].Status)
	assert.Equal(t, []evaltypes.MetricValue{{Name: "accuracy", Value: 0.9}}, recent[0].Metrics)
	assert.Equal(t, testutils.BaseTime.Add(time.Second), recent[0].CompletedAt)
	assert.Equal(t, evaltypes.SampleFailed, recent[1].Status)
	assert.Equal(t, "timeout calling model", recent[1].Reason)

	stats := s.SummaryStats()
	assert.Equal(t, SummaryStats{Failed: 1, Total: 2, SuccessRate: 50}, stats)

	progress := s.Progress()
	assert.Equal(t, 2, progress.Completed)
	require.NotNil(t, progress.Total)
	assert.Equal(t, 4, *progress.Total)
	assert.InDelta(t, 50.0, progress.Percentage, 1e-9)
}

func TestAddMetrics_SummaryDoesNotCount(t *testing.T) {
	clock := testutils.NewClock()
	s := collecting(t, clock, 2)

	require.NoError(t, s.AddMetrics(metrics(t, testutils.SummaryLine("overall_accuracy", 0.85))))

	assert.Equal(t, evaltypes.StatusCollecting(0, intPtr(2)), s.Status())
	assert.Len(t, s.Metrics(), 1, "summary is stored")
	assert.Empty(t, s.RecentSamples())
	assert.Empty(t, s.CurrentSample())
	assert.Equal(t, SummaryStats{}, s.SummaryStats())
}

func TestAddMetrics_CountsOncePerCall(t *testing.T) {
	clock := testutils.NewClock()
	s := collecting(t, clock, 10)

	// Two metrics for the same sample in one message count once.
	line := testutils.MetricsLine(nil,
		testutils.Gauge("accuracy", 1, map[string]any{"sample.id": "s-1"}),
		testutils.Sum("tokens", 120, true, map[string]any{"sample.id": "s-1"}),
	)
	require.NoError(t, s.AddMetrics(metrics(t, line)))
	assert.Equal(t, 1, s.Status().Received)

	// Updating the same sample again counts again but keeps one record.
	require.NoError(t, s.AddMetrics(metrics(t, testutils.SampleLine("s-1", 0.5))))
	assert.Equal(t, 2, s.Status().Received)

	recent := s.RecentSamples()
	require.Len(t, recent, 1)
	assert.Equal(t, []evaltypes.MetricValue{{Name: "accuracy", Value: 0.5}, {Name: "tokens", Value: 120}}, recent[0].Metrics)
}

func TestAddMetrics_MissingSampleID(t *testing.T) {
	s := collecting(t, testutils.NewClock(), 3)
	require.NoError(t, s.AddMetrics(metrics(t, testutils.MetricsLine(nil, testutils.Gauge("accuracy", 1, nil)))))
	assert.Equal(t, "sample-1", s.CurrentSample())
}

func TestRecentSamplesEviction(t *testing.T) {
	s := collecting(t, testutils.NewClock(), 20)
	for i := 1; i <= 13; i++ {
		require.NoError(t, s.AddMetrics(metrics(t, testutils.SampleLine(fmt.Sprintf("s-%d", i), 1))))
	}

	recent := s.RecentSamples()
	require.Len(t, recent, RecentSamplesCapacity)
	assert.Equal(t, "s-4", recent[0].SampleID)
	assert.Equal(t, "s-13", recent[len(recent)-1].SampleID)
	assert.Equal(t, 13, s.SummaryStats().Total)
}

func TestResourceAttributesLastWriteWins(t *testing.T) {
	s := collecting(t, testutils.NewClock(), 5)

	first := testutils.MetricsLine(map[string]any{"model": "a", "host": "h1"}, testutils.Gauge("accuracy", 1, nil))
	second := testutils.MetricsLine(map[string]any{"model": "b"}, testutils.Gauge("accuracy", 1, nil))
	require.NoError(t, s.AddMetrics(metrics(t, first)))
	require.NoError(t, s.AddMetrics(metrics(t, second)))

	attrs := s.ResourceAttributes()
	assert.Equal(t, evaltypes.StringValue("b"), attrs["model"])
	assert.Equal(t, evaltypes.StringValue("h1"), attrs["host"])
}

func TestTogglePause(t *testing.T) {
	s := collecting(t, testutils.NewClock(), 2)
	s.TogglePause()
	assert.True(t, s.IsPaused())

	// Intake continues while paused.
	require.NoError(t, s.AddMetrics(metrics(t, testutils.SampleLine("s-1", 1))))
	assert.Equal(t, 1, s.Status().Received)

	s.TogglePause()
	assert.False(t, s.IsPaused())
}

func TestElapsedAndETA(t *testing.T) {
	clock := testutils.NewClock()
	s := collecting(t, clock, 10)

	_, ok := s.ETA()
	assert.False(t, ok, "no estimate before the first sample")

	clock.Advance(2 * time.Second)
	require.NoError(t, s.AddMetrics(metrics(t, testutils.SampleLine("s-1", 1))))
	assert.Equal(t, 2*time.Second, s.ElapsedTime())

	// One point: 1 sample in 2s -> 9 remaining at 0.5/s = 18s.
	eta, ok := s.ETA()
	require.True(t, ok)
	assert.Equal(t, 18*time.Second, eta)

	clock.Advance(time.Second)
	require.NoError(t, s.AddMetrics(metrics(t, testutils.SampleLine("s-2", 1))))

	// Window: (2s,1) -> (3s,2) = 1/s -> 8 remaining = 8s.
	eta, ok = s.ETA()
	require.True(t, ok)
	assert.Equal(t, 8*time.Second, eta)
}

func TestEtaCalculator(t *testing.T) {
	start := testutils.BaseTime
	total := intPtr(10)

	tests := []struct {
		name      string
		points    []progressPoint
		now       time.Time
		completed int
		total     *int
		want      time.Duration
		wantOK    bool
	}{
		{name: "unknown total", now: start.Add(time.Second), completed: 1, total: nil},
		{name: "nothing completed", now: start.Add(time.Second), completed: 0, total: total},
		{name: "already done", now: start.Add(time.Second), completed: 10, total: total},
		{name: "beyond total", now: start.Add(time.Second), completed: 12, total: total},
		{
			name:      "single point uses elapsed rate",
			points:    []progressPoint{{at: start.Add(5 * time.Second), completed: 5}},
			now:       start.Add(5 * time.Second),
			completed: 5,
			total:     total,
			want:      5 * time.Second,
			wantOK:    true,
		},
		{
			name:      "zero elapsed",
			now:       start,
			completed: 1,
			total:     total,
		},
		{
			name: "windowed rate",
			points: []progressPoint{
				{at: start.Add(1 * time.Second), completed: 1},
				{at: start.Add(2 * time.Second), completed: 3},
				{at: start.Add(3 * time.Second), completed: 5},
			},
			now:       start.Add(10 * time.Second),
			completed: 5,
			total:     total,
			want:      2500 * time.Millisecond,
			wantOK:    true,
		},
		{
			name: "non-positive rate",
			points: []progressPoint{
				{at: start.Add(1 * time.Second), completed: 3},
				{at: start.Add(2 * time.Second), completed: 3},
			},
			now:       start.Add(2 * time.Second),
			completed: 3,
			total:     total,
		},
		{
			name: "identical timestamps",
			points: []progressPoint{
				{at: start.Add(time.Second), completed: 1},
				{at: start.Add(time.Second), completed: 2},
			},
			now:       start.Add(time.Second),
			completed: 2,
			total:     total,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calc := NewEtaCalculator(start)
			for _, p := range tt.points {
				calc.Record(p.at, p.completed)
			}
			got, ok := calc.Estimate(tt.now, tt.completed, tt.total)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestEtaWindowIsBounded(t *testing.T) {
	start := testutils.BaseTime
	calc := NewEtaCalculator(start)

	// Slow early progress followed by ten fast points: only the fast ones matter.
	calc.Record(start.Add(100*time.Second), 1)
	for i := 0; i < EtaWindowCapacity; i++ {
		calc.Record(start.Add(time.Duration(200+i)*time.Second), 2+i)
	}

	eta, ok := calc.Estimate(start.Add(209*time.Second), 11, intPtr(21))
	require.True(t, ok)
	assert.Equal(t, 10*time.Second, eta)
}

func TestRing(t *testing.T) {
	r := NewRing[int](3)
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 3, r.Cap())

	for i := 1; i <= 5; i++ {
		r.Push(i)
	}
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []int{3, 4, 5}, r.Items())
	assert.Equal(t, 3, r.At(0))
}
