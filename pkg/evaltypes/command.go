// Package evaltypes provides the shared domain types for PrEval.
// The protocol decoder produces these values, the evaluation state owns them,
// and renderers read them. Values built through the New* constructors are
// already validated and are never re-checked downstream.
package evaltypes

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// MaxEvaluatorNameLength is the maximum length of an evaluator name, in characters.
const MaxEvaluatorNameLength = 255

var (
	// ErrEmptyCommand is returned when an evaluator command is empty after trimming.
	ErrEmptyCommand = errors.New("evaluator command cannot be empty")
	// ErrEmptyName is returned when an evaluator name is empty after trimming.
	ErrEmptyName = errors.New("evaluator name cannot be empty")
	// ErrNameTooLong is returned when an evaluator name exceeds MaxEvaluatorNameLength.
	ErrNameTooLong = errors.New("evaluator name is too long")
)

// EvaluatorCommand is the command line used to launch the evaluator process.
type EvaluatorCommand struct {
	value string
}

// NewEvaluatorCommand trims the command and rejects empty input.
func NewEvaluatorCommand(command string) (EvaluatorCommand, error) {
	trimmed := strings.TrimSpace(command)
	if trimmed == "" {
		return EvaluatorCommand{}, ErrEmptyCommand
	}
	return EvaluatorCommand{value: trimmed}, nil
}

// String returns the command line.
func (c EvaluatorCommand) String() string {
	return c.value
}

// Fields splits the command on whitespace. No shell quoting is applied.
func (c EvaluatorCommand) Fields() []string {
	return strings.Fields(c.value)
}

// EvaluatorName is the display label for an evaluator.
type EvaluatorName struct {
	value string
}

// NewEvaluatorName trims the name and enforces a length of 1 to 255 characters.
func NewEvaluatorName(name string) (EvaluatorName, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return EvaluatorName{}, ErrEmptyName
	}
	if utf8.RuneCountInString(trimmed) > MaxEvaluatorNameLength {
		return EvaluatorName{}, ErrNameTooLong
	}
	return EvaluatorName{value: trimmed}, nil
}

// String returns the name.
func (n EvaluatorName) String() string {
	return n.value
}
