package protocol

import (
	"strings"
	"testing"

	"preval/internal/testutils"
	"preval/pkg/evaltypes"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validHandshake = `{
	"type": "handshake",
	"mode": "test_suite",
	"version": " 1.0 ",
	"evaluator": {"name": "  accuracy-eval ", "description": "Checks answers", "version": "2.3.4"},
	"execution_plan": {"total_samples": 100, "batch_size": 10},
	"metrics_schema": [{"name": "accuracy", "unit": "ratio", "description": "fraction correct"}]
}`

func TestParseHandshake_Valid(t *testing.T) {
	hs, err := ParseHandshake(validHandshake)
	require.NoError(t, err)

	assert.Equal(t, evaltypes.ModeTestSuite, hs.Mode)
	assert.Equal(t, "1.0", hs.Version)
	assert.Equal(t, "accuracy-eval", hs.Evaluator.Name)
	assert.Equal(t, "Checks answers", hs.Evaluator.Description)
	assert.Equal(t, "2.3.4", hs.Evaluator.Version)
	require.NotNil(t, hs.ExecutionPlan)
	assert.Equal(t, uint32(100), hs.ExecutionPlan.TotalSamples)
	require.NotNil(t, hs.ExecutionPlan.BatchSize)
	assert.Equal(t, uint32(10), *hs.ExecutionPlan.BatchSize)
	require.Len(t, hs.MetricsSchema, 1)
	assert.Equal(t, evaltypes.MetricDefinition{Name: "accuracy", Unit: "ratio", Description: "fraction correct"}, hs.MetricsSchema[0])
}

func TestParseHandshake_OptionalSections(t *testing.T) {
	hs, err := ParseHandshake(`{"type":"handshake","mode":"continuous","version":"1.2","evaluator":{"name":"e"},"metrics_schema":[]}`)
	require.NoError(t, err)

	assert.Equal(t, evaltypes.ModeContinuous, hs.Mode)
	assert.Nil(t, hs.ExecutionPlan)
	assert.Nil(t, hs.TotalSamples())
	assert.Empty(t, hs.Evaluator.Description)
	assert.Empty(t, hs.MetricsSchema)
}

func TestParseHandshake_BuilderOutput(t *testing.T) {
	hs, err := ParseHandshake(testutils.HandshakeLine(2))
	require.NoError(t, err)
	require.NotNil(t, hs.TotalSamples())
	assert.Equal(t, 2, *hs.TotalSamples())
}

func TestParseHandshake_Errors(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantErr error
		wantMsg string
	}{
		{
			name:    "malformed json",
			line:    `{"type": "handshake",`,
			wantErr: ErrMalformedJSON,
		},
		{
			name:    "plain text",
			line:    "Loading model weights...",
			wantErr: ErrMalformedJSON,
		},
		{
			name:    "wrong message type",
			line:    `{"type":"metrics","mode":"test_suite","version":"1.0","evaluator":{"name":"e"},"metrics_schema":[]}`,
			wantErr: ErrWrongMessageType,
			wantMsg: "expected 'handshake', got 'metrics'",
		},
		{
			name:    "missing type",
			line:    `{"mode":"test_suite"}`,
			wantErr: ErrMissingField,
		},
		{
			name:    "missing mode",
			line:    `{"type":"handshake","version":"1.0","evaluator":{"name":"e"},"metrics_schema":[]}`,
			wantErr: ErrMissingField,
			wantMsg: "mode",
		},
		{
			name:    "missing metrics schema",
			line:    `{"type":"handshake","mode":"test_suite","version":"1.0","evaluator":{"name":"e"}}`,
			wantErr: ErrMissingField,
			wantMsg: "metrics_schema",
		},
		{
			name:    "missing evaluator",
			line:    `{"type":"handshake","mode":"test_suite","version":"1.0","metrics_schema":[]}`,
			wantErr: ErrMissingField,
		},
		{
			name:    "unknown mode",
			line:    `{"type":"handshake","mode":"batch","version":"1.0","evaluator":{"name":"e"},"metrics_schema":[]}`,
			wantErr: ErrInvalidMode,
		},
		{
			name:    "wrongly typed field",
			line:    `{"type":"handshake","mode":"test_suite","version":1,"evaluator":{"name":"e"},"metrics_schema":[]}`,
			wantErr: ErrDecode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hs, err := ParseHandshake(tt.line)
			assert.Nil(t, hs)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestParseHandshake_ValidationCauses(t *testing.T) {
	build := func(version, evaluator, plan, schema string) string {
		line := `{"type":"handshake","mode":"test_suite","version":` + version +
			`,"evaluator":` + evaluator + `,"metrics_schema":` + schema
		if plan != "" {
			line += `,"execution_plan":` + plan
		}
		return line + "}"
	}
	okEvaluator := `{"name":"e"}`

	tests := []struct {
		name  string
		line  string
		cause ValidationCause
	}{
		{name: "blank version", line: build(`"   "`, okEvaluator, "", "[]"), cause: CauseInvalidVersion},
		{name: "version too long", line: build(`"`+strings.Repeat("1", 33)+`"`, okEvaluator, "", "[]"), cause: CauseInvalidVersion},
		{name: "blank evaluator name", line: build(`"1.0"`, `{"name":"  "}`, "", "[]"), cause: CauseEmptyEvaluatorName},
		{name: "empty description", line: build(`"1.0"`, `{"name":"e","description":" "}`, "", "[]"), cause: CauseInvalidDescription},
		{name: "description too long", line: build(`"1.0"`, `{"name":"e","description":"`+strings.Repeat("d", 513)+`"}`, "", "[]"), cause: CauseInvalidDescription},
		{name: "zero total samples", line: build(`"1.0"`, okEvaluator, `{"total_samples":0}`, "[]"), cause: CauseInvalidTotalSamples},
		{name: "negative total samples", line: build(`"1.0"`, okEvaluator, `{"total_samples":-5}`, "[]"), cause: CauseInvalidTotalSamples},
		{name: "fractional total samples", line: build(`"1.0"`, okEvaluator, `{"total_samples":1.5}`, "[]"), cause: CauseInvalidTotalSamples},
		{name: "zero batch size", line: build(`"1.0"`, okEvaluator, `{"total_samples":5,"batch_size":0}`, "[]"), cause: CauseInvalidBatchSize},
		{name: "blank metric name", line: build(`"1.0"`, okEvaluator, "", `[{"name":" "}]`), cause: CauseInvalidMetricName},
		{name: "metric name too long", line: build(`"1.0"`, okEvaluator, "", `[{"name":"`+strings.Repeat("m", 129)+`"}]`), cause: CauseInvalidMetricName},
		{name: "blank metric unit", line: build(`"1.0"`, okEvaluator, "", `[{"name":"m","unit":""}]`), cause: CauseInvalidMetricUnit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hs, err := ParseHandshake(tt.line)
			assert.Nil(t, hs)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.cause, verr.Cause)
			assert.Contains(t, err.Error(), tt.cause.String())
		})
	}
}

func TestParseHandshake_FirstViolationWins(t *testing.T) {
	// Both the version and the evaluator name are invalid; version is checked first.
	line := `{"type":"handshake","mode":"test_suite","version":"","evaluator":{"name":""},"metrics_schema":[]}`
	_, err := ParseHandshake(line)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, CauseInvalidVersion, verr.Cause)
}

func TestCheckProtocolCompatibility(t *testing.T) {
	tests := []struct {
		version string
		wantErr bool
	}{
		{version: "1.0", wantErr: false},
		{version: "1.4.2", wantErr: false},
		{version: "0.9", wantErr: true},
		{version: "2.0.0", wantErr: true},
		{version: "v-next", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			err := CheckProtocolCompatibility(tt.version)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrIncompatibleProtocol)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
