package protocol

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"preval/pkg/evaltypes"

	"github.com/tidwall/gjson"
)

// HandshakeType is the value of the "type" field that identifies a handshake.
const HandshakeType = "handshake"

// Field length limits, in characters, after trimming.
const (
	maxVersionLength     = 32
	maxDescriptionLength = 512
	maxMetricNameLength  = 128
	maxMetricUnitLength  = 32
)

type rawEvaluatorInfo struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Version     *string `json:"version"`
}

type rawExecutionPlan struct {
	TotalSamples *json.Number `json:"total_samples"`
	BatchSize    *json.Number `json:"batch_size"`
}

type rawMetricDefinition struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Unit        *string `json:"unit"`
}

type rawHandshake struct {
	Type          *string                `json:"type"`
	Mode          *string                `json:"mode"`
	Version       *string                `json:"version"`
	Evaluator     *rawEvaluatorInfo      `json:"evaluator"`
	ExecutionPlan *rawExecutionPlan      `json:"execution_plan"`
	MetricsSchema *[]rawMetricDefinition `json:"metrics_schema"`
}

// ParseHandshake decodes and validates a handshake line. Validation is
// all-or-nothing and stops at the first violation.
func ParseHandshake(line string) (*evaltypes.ValidatedHandshake, error) {
	if !gjson.Valid(line) {
		return nil, fmt.Errorf("failed to parse handshake JSON: %w", ErrMalformedJSON)
	}

	msgType := gjson.Get(line, "type")
	if !msgType.Exists() || msgType.Type == gjson.Null {
		return nil, fmt.Errorf("%w: type", ErrMissingField)
	}
	if msgType.Type != gjson.String || msgType.Str != HandshakeType {
		return nil, fmt.Errorf("%w: expected '%s', got '%s'", ErrWrongMessageType, HandshakeType, msgType.String())
	}

	var raw rawHandshake
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return nil, fmt.Errorf("failed to decode handshake: %w: %v", ErrDecode, err)
	}
	if err := raw.checkRequired(); err != nil {
		return nil, err
	}

	mode := evaltypes.EvaluationMode(*raw.Mode)
	if !mode.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, *raw.Mode)
	}

	return raw.validate(mode)
}

func (raw *rawHandshake) checkRequired() error {
	switch {
	case raw.Mode == nil:
		return fmt.Errorf("%w: mode", ErrMissingField)
	case raw.Version == nil:
		return fmt.Errorf("%w: version", ErrMissingField)
	case raw.Evaluator == nil:
		return fmt.Errorf("%w: evaluator", ErrMissingField)
	case raw.Evaluator.Name == nil:
		return fmt.Errorf("%w: evaluator.name", ErrMissingField)
	case raw.MetricsSchema == nil:
		return fmt.Errorf("%w: metrics_schema", ErrMissingField)
	case raw.ExecutionPlan != nil && raw.ExecutionPlan.TotalSamples == nil:
		return fmt.Errorf("%w: execution_plan.total_samples", ErrMissingField)
	}
	for i, def := range *raw.MetricsSchema {
		if def.Name == nil {
			return fmt.Errorf("%w: metrics_schema[%d].name", ErrMissingField, i)
		}
	}
	return nil
}

func (raw *rawHandshake) validate(mode evaltypes.EvaluationMode) (*evaltypes.ValidatedHandshake, error) {
	version, err := boundedText(*raw.Version, maxVersionLength)
	if err != nil {
		return nil, invalid(CauseInvalidVersion, err.Error())
	}

	info, err := raw.Evaluator.validate()
	if err != nil {
		return nil, err
	}

	var plan *evaltypes.ExecutionPlan
	if raw.ExecutionPlan != nil {
		if plan, err = raw.ExecutionPlan.validate(); err != nil {
			return nil, err
		}
	}

	schema := make([]evaltypes.MetricDefinition, 0, len(*raw.MetricsSchema))
	for _, def := range *raw.MetricsSchema {
		validated, err := def.validate()
		if err != nil {
			return nil, err
		}
		schema = append(schema, validated)
	}

	return &evaltypes.ValidatedHandshake{
		Mode:          mode,
		Version:       version,
		Evaluator:     info,
		ExecutionPlan: plan,
		MetricsSchema: schema,
	}, nil
}

func (raw *rawEvaluatorInfo) validate() (evaltypes.EvaluatorInfo, error) {
	name := strings.TrimSpace(*raw.Name)
	if name == "" {
		return evaltypes.EvaluatorInfo{}, invalid(CauseEmptyEvaluatorName, "")
	}

	info := evaltypes.EvaluatorInfo{Name: name}
	if raw.Description != nil {
		desc, err := boundedText(*raw.Description, maxDescriptionLength)
		if err != nil {
			return evaltypes.EvaluatorInfo{}, invalid(CauseInvalidDescription, err.Error())
		}
		info.Description = desc
	}
	if raw.Version != nil {
		info.Version = *raw.Version
	}
	return info, nil
}

func (raw *rawExecutionPlan) validate() (*evaltypes.ExecutionPlan, error) {
	total, err := positiveUint32(*raw.TotalSamples)
	if err != nil {
		return nil, invalid(CauseInvalidTotalSamples, err.Error())
	}

	plan := &evaltypes.ExecutionPlan{TotalSamples: total}
	if raw.BatchSize != nil {
		batch, err := positiveUint32(*raw.BatchSize)
		if err != nil {
			return nil, invalid(CauseInvalidBatchSize, err.Error())
		}
		plan.BatchSize = &batch
	}
	return plan, nil
}

func (raw rawMetricDefinition) validate() (evaltypes.MetricDefinition, error) {
	name, err := boundedText(*raw.Name, maxMetricNameLength)
	if err != nil {
		return evaltypes.MetricDefinition{}, invalid(CauseInvalidMetricName, err.Error())
	}

	def := evaltypes.MetricDefinition{Name: name}
	if raw.Unit != nil {
		unit, err := boundedText(*raw.Unit, maxMetricUnitLength)
		if err != nil {
			return evaltypes.MetricDefinition{}, invalid(CauseInvalidMetricUnit, err.Error())
		}
		def.Unit = unit
	}
	if raw.Description != nil {
		def.Description = *raw.Description
	}
	return def, nil
}

// boundedText trims s and requires 1 to max characters.
func boundedText(s string, max int) (string, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "", fmt.Errorf("value cannot be empty")
	}
	if n := utf8.RuneCountInString(trimmed); n > max {
		return "", fmt.Errorf("value is %d characters, maximum is %d", n, max)
	}
	return trimmed, nil
}

func positiveUint32(n json.Number) (uint32, error) {
	v, err := n.Int64()
	if err != nil {
		return 0, fmt.Errorf("%s is not an integer", n)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%d must be greater than 0", v)
	}
	if v > math.MaxUint32 {
		return 0, fmt.Errorf("%d is out of range", v)
	}
	return uint32(v), nil
}
