// Package process supervises the evaluator child process: it launches the
// command, turns its output streams into line messages, reports its exit and
// tears the whole process group down on request.
package process

import (
	"fmt"
	"os"
)

// MessageKind tags the variant of a Message.
type MessageKind int

const (
	// KindOutput carries one line from the evaluator's stdout or filtered stderr.
	KindOutput MessageKind = iota
	// KindExited reports that the evaluator process has ended.
	KindExited
)

// Message is an event emitted by a Supervisor.
type Message struct {
	Kind   MessageKind
	Line   string     // set for KindOutput
	Stderr bool       // Line came from stderr and carries StderrPrefix
	Status ExitStatus // set for KindExited
}

// Output builds a stdout line message.
func Output(line string) Message {
	return Message{Kind: KindOutput, Line: line}
}

// Diagnostic builds a stderr line message.
func Diagnostic(line string) Message {
	return Message{Kind: KindOutput, Line: StderrPrefix + line, Stderr: true}
}

// Exited builds an exit message.
func Exited(status ExitStatus) Message {
	return Message{Kind: KindExited, Status: status}
}

// ExitStatus describes how the evaluator ended. Code is nil when the process
// was terminated by a signal or the exit code could not be observed.
type ExitStatus struct {
	Success bool
	Code    *int
	Signal  string
}

// String renders the status for logs and failure reasons.
func (e ExitStatus) String() string {
	switch {
	case e.Code != nil:
		return fmt.Sprintf("exit code %d", *e.Code)
	case e.Signal != "":
		return "signal " + e.Signal
	default:
		return "unknown exit status"
	}
}

func exitStatusFrom(state *os.ProcessState, err error) ExitStatus {
	if err != nil || state == nil {
		return ExitStatus{}
	}
	status := ExitStatus{Success: state.Success()}
	if code := state.ExitCode(); code >= 0 {
		status.Code = &code
	} else {
		status.Signal = exitSignal(state)
	}
	return status
}
