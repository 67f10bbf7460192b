package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"preval/internal/protocol"
	"preval/internal/state"
	"preval/internal/testutils"
	"preval/pkg/evaltypes"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// finishedRun returns a completed run with two samples, one failed, and a summary.
func finishedRun(t *testing.T) *state.State {
	t.Helper()
	clock := testutils.NewClock()
	s := state.New(state.WithClock(clock.Now), state.WithRunID("run-42"))

	hs, err := protocol.ParseHandshake(testutils.HandshakeLine(2))
	require.NoError(t, err)
	require.NoError(t, s.SetHandshake(hs))
	require.NoError(t, s.UpdateStatus(evaltypes.StatusCollecting(0, hs.TotalSamples())))

	lines := []string{
		testutils.MetricsLine(map[string]any{"service.name": "qa"},
			testutils.Gauge("accuracy", 0.8, map[string]any{"sample.id": "s-1"})),
		testutils.FailedSampleLine("s-2", "timeout"),
		testutils.SummaryLine("overall_accuracy", 0.4),
	}
	for _, line := range lines {
		clock.Advance(1500 * time.Millisecond)
		md, err := protocol.ParseMetricsLine(line)
		require.NoError(t, err)
		require.NoError(t, s.AddMetrics(md))
	}
	require.NoError(t, s.UpdateStatus(evaltypes.StatusCompleted()))
	return s
}

func TestBuild(t *testing.T) {
	generated := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	r := Build(finishedRun(t), false, generated)

	assert.Equal(t, "run-42", r.RunID)
	assert.Equal(t, "test-evaluator", r.Evaluator)
	assert.Equal(t, "completed", r.Status)
	assert.Empty(t, r.Reason)
	assert.Equal(t, generated, r.GeneratedAt)
	assert.InDelta(t, 4.5, r.ElapsedSeconds, 1e-9)

	require.NotNil(t, r.Progress.Total)
	assert.Equal(t, 2, *r.Progress.Total)
	assert.Equal(t, 2, r.Progress.Completed)
	assert.Equal(t, Summary{Failed: 1, Total: 2, SuccessRate: 50}, r.Summary)

	require.Len(t, r.Metrics, 1)
	assert.Equal(t, "accuracy", r.Metrics[0].Name)
	assert.Equal(t, "gauge", r.Metrics[0].Kind)
	assert.Equal(t, 2, r.Metrics[0].Count)
	assert.InDelta(t, 0.4, r.Metrics[0].Mean, 1e-9)
	assert.InDelta(t, 0.0, r.Metrics[0].Min, 1e-9)
	assert.InDelta(t, 0.8, r.Metrics[0].Max, 1e-9)

	assert.Equal(t, []SummaryMetric{{Name: "overall_accuracy", Value: 0.4}}, r.SummaryMetrics)
	assert.Equal(t, map[string]string{"service.name": "qa"}, r.Resource)

	require.Len(t, r.RecentSamples, 2)
	assert.Equal(t, "s-1", r.RecentSamples[0].ID)
	assert.Equal(t, "completed", r.RecentSamples[0].Status)
	assert.Equal(t, "failed", r.RecentSamples[1].Status)
	assert.Equal(t, "timeout", r.RecentSamples[1].Reason)
	assert.NotNil(t, r.RecentSamples[1].CompletedAt)
}

func TestBuildLargeGaugesStayFinite(t *testing.T) {
	s := state.New(state.WithRunID("run-big"))
	hs, err := protocol.ParseHandshake(testutils.HandshakeLine(2))
	require.NoError(t, err)
	require.NoError(t, s.SetHandshake(hs))
	require.NoError(t, s.UpdateStatus(evaltypes.StatusCollecting(0, hs.TotalSamples())))
	for _, id := range []string{"s-1", "s-2"} {
		md, err := protocol.ParseMetricsLine(testutils.MetricsLine(nil,
			testutils.Gauge("loss", 1e308, map[string]any{"sample.id": id})))
		require.NoError(t, err)
		require.NoError(t, s.AddMetrics(md))
	}

	r := Build(s, false, time.Now())
	require.Len(t, r.Metrics, 1)
	assert.InDelta(t, 1e308, r.Metrics[0].Mean, 1e293)

	var buf bytes.Buffer
	require.NoError(t, r.Write(&buf, FormatJSON))
	assert.Contains(t, buf.String(), `"mean": 1e+308`)
}

func TestBuild_BeforeHandshake(t *testing.T) {
	s := state.New(state.WithRunID("run-0"))
	require.NoError(t, s.UpdateStatus(evaltypes.StatusFailed("handshake timeout")))

	r := Build(s, true, time.Now())
	assert.Equal(t, "failed", r.Status)
	assert.Equal(t, "handshake timeout", r.Reason)
	assert.True(t, r.Interrupted)
	assert.Nil(t, r.Handshake)
	assert.Nil(t, r.Progress.Total)
	assert.Empty(t, r.Metrics)
	assert.Empty(t, r.RecentSamples)
	assert.Nil(t, r.Resource)
}

func TestFormatForPath(t *testing.T) {
	tests := []struct {
		path    string
		want    Format
		wantErr bool
	}{
		{path: "run.yaml", want: FormatYAML},
		{path: "out/run.YML", want: FormatYAML},
		{path: "run.json", want: FormatJSON},
		{path: "run.md", want: FormatMarkdown},
		{path: "run.txt", wantErr: true},
		{path: "run", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := FormatForPath(tt.path)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWrite_JSONAndYAML(t *testing.T) {
	r := Build(finishedRun(t), false, time.Unix(0, 0))

	var buf bytes.Buffer
	require.NoError(t, r.Write(&buf, FormatJSON))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run-42", decoded["run_id"])
	assert.Equal(t, "completed", decoded["status"])
	handshake := decoded["handshake"].(map[string]any)
	assert.Equal(t, "test_suite", handshake["mode"])

	buf.Reset()
	require.NoError(t, r.Write(&buf, FormatYAML))
	var fromYAML map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &fromYAML))
	assert.Equal(t, "run-42", fromYAML["run_id"])
	summary := fromYAML["summary"].(map[string]any)
	assert.Equal(t, 1, summary["failed"])

	assert.ErrorIs(t, r.Write(&buf, Format("csv")), ErrUnknownFormat)
}

func TestMarkdown(t *testing.T) {
	md := Build(finishedRun(t), true, time.Unix(0, 0)).Markdown()

	assert.Contains(t, md, "# PrEval run: test-evaluator")
	assert.Contains(t, md, "- **Status:** completed, interrupted")
	assert.Contains(t, md, "- **Progress:** 2/2 samples (100.0%)")
	assert.Contains(t, md, "- **Failed:** 1/2 (50.0% success rate)")
	assert.Contains(t, md, "| accuracy | gauge | 2 | 0.400 | 0.000 | 0.800 |")
	assert.Contains(t, md, "- overall_accuracy: 0.400")
	assert.Contains(t, md, "| s-2 | failed: timeout | accuracy=0.00 |")
}

func TestWriteFile(t *testing.T) {
	r := Build(finishedRun(t), false, time.Unix(0, 0))
	dir := t.TempDir()

	path := filepath.Join(dir, "nested", "run.yaml")
	require.NoError(t, r.WriteFile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "run_id: run-42")

	assert.ErrorIs(t, r.WriteFile(filepath.Join(dir, "run.csv")), ErrUnknownFormat)
}
