package evaltypes

import "fmt"

// StatusPhase tags the variant of an EvaluationStatus.
type StatusPhase int

// Evaluation phases, in lifecycle order.
const (
	PhaseStarting StatusPhase = iota
	PhaseWaitingForHandshake
	PhaseCollectingMetrics
	PhaseCompleted
	PhaseFailed
)

func (p StatusPhase) String() string {
	switch p {
	case PhaseStarting:
		return "starting"
	case PhaseWaitingForHandshake:
		return "waiting_for_handshake"
	case PhaseCollectingMetrics:
		return "collecting_metrics"
	case PhaseCompleted:
		return "completed"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// EvaluationStatus is the lifecycle status of one evaluation run.
// Received and Total are only meaningful while collecting metrics,
// Reason only when failed.
type EvaluationStatus struct {
	Phase    StatusPhase
	Received int
	Total    *int
	Reason   string
}

// StatusStarting is the initial status.
func StatusStarting() EvaluationStatus {
	return EvaluationStatus{Phase: PhaseStarting}
}

// StatusWaitingForHandshake is the status while the evaluator has not yet
// sent a valid handshake.
func StatusWaitingForHandshake() EvaluationStatus {
	return EvaluationStatus{Phase: PhaseWaitingForHandshake}
}

// StatusCollecting is the status while metrics are streaming in.
func StatusCollecting(received int, total *int) EvaluationStatus {
	return EvaluationStatus{Phase: PhaseCollectingMetrics, Received: received, Total: total}
}

// StatusCompleted is the terminal success status.
func StatusCompleted() EvaluationStatus {
	return EvaluationStatus{Phase: PhaseCompleted}
}

// StatusFailed is the terminal failure status with a human-readable reason.
func StatusFailed(reason string) EvaluationStatus {
	return EvaluationStatus{Phase: PhaseFailed, Reason: reason}
}

// IsTerminal reports whether no further transitions are allowed.
func (s EvaluationStatus) IsTerminal() bool {
	return s.Phase == PhaseCompleted || s.Phase == PhaseFailed
}

func (s EvaluationStatus) String() string {
	switch s.Phase {
	case PhaseStarting:
		return "Starting"
	case PhaseWaitingForHandshake:
		return "Waiting for handshake"
	case PhaseCollectingMetrics:
		if s.Total != nil {
			return fmt.Sprintf("Collecting metrics (%d/%d)", s.Received, *s.Total)
		}
		return fmt.Sprintf("Collecting metrics (%d)", s.Received)
	case PhaseCompleted:
		return "Completed"
	case PhaseFailed:
		return "Failed: " + s.Reason
	default:
		return "Unknown"
	}
}
