package evaltypes

// EvaluationMode is the run mode announced by the evaluator in its handshake.
type EvaluationMode string

// Supported evaluation modes.
const (
	ModeTestSuite        EvaluationMode = "test_suite"
	ModeOnlineCollection EvaluationMode = "online_collection"
	ModeContinuous       EvaluationMode = "continuous"
)

// IsValid reports whether the mode belongs to the closed set of supported modes.
func (m EvaluationMode) IsValid() bool {
	switch m {
	case ModeTestSuite, ModeOnlineCollection, ModeContinuous:
		return true
	}
	return false
}

// EvaluatorInfo describes the evaluator that sent the handshake.
type EvaluatorInfo struct {
	Name        string `json:"name" yaml:"name"`                                   // Trimmed, non-empty
	Description string `json:"description,omitempty" yaml:"description,omitempty"` // Empty when absent
	Version     string `json:"version,omitempty" yaml:"version,omitempty"`         // Passed through unchecked
}

// ExecutionPlan describes how many samples the evaluator intends to produce.
type ExecutionPlan struct {
	TotalSamples uint32  `json:"total_samples" yaml:"total_samples"`
	BatchSize    *uint32 `json:"batch_size,omitempty" yaml:"batch_size,omitempty"`
}

// MetricDefinition is one entry of the declared metrics schema.
type MetricDefinition struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Unit        string `json:"unit,omitempty" yaml:"unit,omitempty"`
}

// ValidatedHandshake is a handshake whose every field passed validation.
// It is only produced by the protocol decoder.
type ValidatedHandshake struct {
	Mode          EvaluationMode     `json:"mode" yaml:"mode"`
	Version       string             `json:"version" yaml:"version"`
	Evaluator     EvaluatorInfo      `json:"evaluator" yaml:"evaluator"`
	ExecutionPlan *ExecutionPlan     `json:"execution_plan,omitempty" yaml:"execution_plan,omitempty"`
	MetricsSchema []MetricDefinition `json:"metrics_schema" yaml:"metrics_schema"`
}

// TotalSamples returns the planned sample count, or nil when the evaluator
// did not announce an execution plan.
func (h *ValidatedHandshake) TotalSamples() *int {
	if h == nil || h.ExecutionPlan == nil {
		return nil
	}
	total := int(h.ExecutionPlan.TotalSamples)
	return &total
}
