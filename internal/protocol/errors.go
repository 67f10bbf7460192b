// Package protocol decodes the evaluator wire protocol: one handshake message
// followed by OTLP-shaped metrics messages, one JSON object per line.
package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedJSON is returned when a line is not well-formed JSON.
	ErrMalformedJSON = errors.New("malformed JSON")
	// ErrWrongMessageType is returned when a handshake line has a type other than "handshake".
	ErrWrongMessageType = errors.New("invalid message type")
	// ErrMissingField is returned when a required handshake field is absent.
	ErrMissingField = errors.New("missing required field")
	// ErrInvalidMode is returned when the handshake mode is outside the supported set.
	ErrInvalidMode = errors.New("invalid evaluation mode")
	// ErrDecode is returned when a line is valid JSON but does not fit the wire shape.
	ErrDecode = errors.New("unexpected message shape")

	// ErrInvalidMetricType is returned when a metric has zero or several of gauge, sum and histogram.
	ErrInvalidMetricType = errors.New("metric must have exactly one type (gauge, sum, or histogram)")
	// ErrEmptyMetricName is returned when a metric name is blank.
	ErrEmptyMetricName = errors.New("metric name cannot be empty")
	// ErrNonMonotonicSum is returned for sums that are not monotonic counters.
	ErrNonMonotonicSum = errors.New("non-monotonic sums are not supported")
	// ErrInvalidTimestamp is returned when timeUnixNano is not a positive decimal integer.
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	// ErrInvalidCount is returned when a histogram count is not a decimal integer.
	ErrInvalidCount = errors.New("invalid histogram count")
	// ErrInvalidAttribute is returned for an attribute with a bad key or value.
	ErrInvalidAttribute = errors.New("invalid attribute")
	// ErrInvalidValue is returned when a data point value is missing or out of range.
	ErrInvalidValue = errors.New("invalid data point value")
)

// ValidationCause identifies which handshake field failed validation.
type ValidationCause int

// Handshake validation causes.
const (
	CauseInvalidVersion ValidationCause = iota
	CauseEmptyEvaluatorName
	CauseInvalidDescription
	CauseInvalidTotalSamples
	CauseInvalidBatchSize
	CauseInvalidMetricName
	CauseInvalidMetricUnit
)

func (c ValidationCause) String() string {
	switch c {
	case CauseInvalidVersion:
		return "protocol version is invalid"
	case CauseEmptyEvaluatorName:
		return "evaluator name cannot be empty"
	case CauseInvalidDescription:
		return "evaluator description is invalid"
	case CauseInvalidTotalSamples:
		return "total samples count is invalid"
	case CauseInvalidBatchSize:
		return "batch size is invalid"
	case CauseInvalidMetricName:
		return "metric name is invalid"
	case CauseInvalidMetricUnit:
		return "metric unit is invalid"
	default:
		return "handshake is invalid"
	}
}

// ValidationError reports the first handshake field that failed validation.
type ValidationError struct {
	Cause  ValidationCause
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return "handshake validation failed: " + e.Cause.String()
	}
	return fmt.Sprintf("handshake validation failed: %s: %s", e.Cause, e.Detail)
}

func invalid(cause ValidationCause, detail string) *ValidationError {
	return &ValidationError{Cause: cause, Detail: detail}
}
