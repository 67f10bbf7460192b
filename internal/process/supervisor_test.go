package process

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"testing"
	"time"

	"preval/pkg/evaltypes"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helperEnv = "PREVAL_WANT_HELPER_PROCESS"

// TestHelperProcess is not a real test. It is the fake evaluator started by
// the tests below through os.Args[0].
func TestHelperProcess(t *testing.T) {
	if os.Getenv(helperEnv) != "1" {
		return
	}
	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	if len(args) < 2 {
		os.Exit(2)
	}

	switch args[1] {
	case "lines":
		for i := 1; i <= 5; i++ {
			fmt.Printf("line %d\n", i)
		}
		os.Exit(0)
	case "stderr":
		fmt.Fprintln(os.Stderr, "   Compiling preval v0.1.0")
		fmt.Fprintln(os.Stderr, "    Finished dev profile")
		fmt.Fprintln(os.Stderr, "     Running `target/debug/mock`")
		fmt.Fprintln(os.Stderr, "/work/target/debug/deps/libfoo.rlib")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Downloading weights")
		fmt.Fprintln(os.Stderr, "panic: model not found")
		os.Exit(0)
	case "mixed":
		fmt.Println("stderr: printed on stdout")
		fmt.Fprintln(os.Stderr, "real diagnostic")
		os.Exit(0)
	case "exit":
		code, _ := strconv.Atoi(args[2])
		fmt.Println("about to exit")
		os.Exit(code)
	case "sleep":
		fmt.Println("sleeping")
		time.Sleep(time.Minute)
		os.Exit(0)
	}
	os.Exit(2)
}

func helperCommand(t *testing.T, args ...string) evaltypes.EvaluatorCommand {
	t.Helper()
	t.Setenv(helperEnv, "1")
	line := os.Args[0] + " -test.run=^TestHelperProcess$ --"
	for _, a := range args {
		line += " " + a
	}
	cmd, err := evaltypes.NewEvaluatorCommand(line)
	require.NoError(t, err)
	return cmd
}

// collect reads messages until the sink is closed.
func collect(t *testing.T, sink <-chan Message) []Message {
	t.Helper()
	var msgs []Message
	timeout := time.After(20 * time.Second)
	for {
		select {
		case msg, ok := <-sink:
			if !ok {
				return msgs
			}
			msgs = append(msgs, msg)
		case <-timeout:
			t.Fatalf("timed out waiting for supervisor, got %d messages", len(msgs))
			return msgs
		}
	}
}

func outputLines(msgs []Message) []string {
	var lines []string
	for _, m := range msgs {
		if m.Kind == KindOutput {
			lines = append(lines, m.Line)
		}
	}
	return lines
}

func TestSpawn_EmptyCommand(t *testing.T) {
	sup, err := Spawn(evaltypes.EvaluatorCommand{}, make(chan Message, 1))
	assert.Nil(t, sup)
	assert.ErrorIs(t, err, ErrEmptyCommand)
}

func TestSpawn_MissingProgram(t *testing.T) {
	cmd, err := evaltypes.NewEvaluatorCommand("/definitely/not/a/real/evaluator --flag")
	require.NoError(t, err)

	sup, err := Spawn(cmd, make(chan Message, 1))
	assert.Nil(t, sup)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to spawn evaluator")
}

func TestSupervisor_StdoutOrderAndExit(t *testing.T) {
	sink := make(chan Message, 100)
	sup, err := Spawn(helperCommand(t, "lines"), sink)
	require.NoError(t, err)
	defer func() { _ = sup.Close() }()

	msgs := collect(t, sink)
	require.NotEmpty(t, msgs)

	assert.Equal(t, []string{"line 1", "line 2", "line 3", "line 4", "line 5"}, outputLines(msgs))

	last := msgs[len(msgs)-1]
	require.Equal(t, KindExited, last.Kind, "exit must be the final message")
	assert.True(t, last.Status.Success)
	require.NotNil(t, last.Status.Code)
	assert.Equal(t, 0, *last.Status.Code)

	exits := 0
	for _, m := range msgs {
		if m.Kind == KindExited {
			exits++
		}
	}
	assert.Equal(t, 1, exits)
}

func TestSupervisor_StderrFiltering(t *testing.T) {
	sink := make(chan Message, 100)
	sup, err := Spawn(helperCommand(t, "stderr"), sink)
	require.NoError(t, err)
	defer func() { _ = sup.Close() }()

	lines := outputLines(collect(t, sink))
	assert.Equal(t, []string{"stderr: Downloading weights", "stderr: panic: model not found"}, lines)
}

func TestSupervisor_StreamTagging(t *testing.T) {
	sink := make(chan Message, 100)
	sup, err := Spawn(helperCommand(t, "mixed"), sink)
	require.NoError(t, err)
	defer func() { _ = sup.Close() }()

	fromStderr := map[string]bool{}
	for _, m := range collect(t, sink) {
		if m.Kind == KindOutput {
			fromStderr[m.Line] = m.Stderr
		}
	}
	assert.Equal(t, map[string]bool{
		"stderr: printed on stdout": false,
		"stderr: real diagnostic":   true,
	}, fromStderr)
}

func TestSupervisor_StderrExtraPrefixes(t *testing.T) {
	sink := make(chan Message, 100)
	sup, err := Spawn(helperCommand(t, "stderr"), sink, WithNoiseFilter(DefaultNoiseFilter("Downloading")))
	require.NoError(t, err)
	defer func() { _ = sup.Close() }()

	lines := outputLines(collect(t, sink))
	assert.Equal(t, []string{"stderr: panic: model not found"}, lines)
}

func TestSupervisor_NonZeroExit(t *testing.T) {
	sink := make(chan Message, 100)
	sup, err := Spawn(helperCommand(t, "exit", "3"), sink)
	require.NoError(t, err)
	defer func() { _ = sup.Close() }()

	msgs := collect(t, sink)
	last := msgs[len(msgs)-1]
	require.Equal(t, KindExited, last.Kind)
	assert.False(t, last.Status.Success)
	require.NotNil(t, last.Status.Code)
	assert.Equal(t, 3, *last.Status.Code)
	assert.Equal(t, "exit code 3", last.Status.String())
}

func TestSupervisor_KillIsIdempotent(t *testing.T) {
	sink := make(chan Message, 100)
	sup, err := Spawn(helperCommand(t, "sleep"), sink)
	require.NoError(t, err)
	defer func() { _ = sup.Close() }()

	// Wait for the child to be running before killing it.
	first := <-sink
	require.Equal(t, KindOutput, first.Kind)
	assert.Equal(t, "sleeping", first.Line)

	require.NoError(t, sup.Kill())
	require.NoError(t, sup.Kill())

	msgs := collect(t, sink)
	require.NotEmpty(t, msgs)
	last := msgs[len(msgs)-1]
	require.Equal(t, KindExited, last.Kind)
	assert.False(t, last.Status.Success)
	if runtime.GOOS != "windows" {
		assert.Nil(t, last.Status.Code)
		assert.Contains(t, last.Status.String(), "signal")
	}

	// The process is gone now; killing again is a no-op.
	assert.NoError(t, sup.Kill())
}

func TestSupervisor_CloseWithoutConsumer(t *testing.T) {
	// A sink nobody reads from must not keep the supervisor alive after Close.
	sink := make(chan Message)
	sup, err := Spawn(helperCommand(t, "lines"), sink)
	require.NoError(t, err)

	require.NoError(t, sup.Close())
	select {
	case <-sup.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("supervisor did not stop after Close")
	}
	assert.NoError(t, sup.Close())
}

func TestNoiseFilter(t *testing.T) {
	f := DefaultNoiseFilter("warning: unused")

	tests := []struct {
		line  string
		noise bool
	}{
		{line: "   Compiling serde v1.0.0", noise: true},
		{line: "Finished release [optimized]", noise: true},
		{line: "Running tests", noise: true},
		{line: "see /x/target/debug/deps/foo", noise: true},
		{line: "   ", noise: true},
		{line: "warning: unused variable", noise: true},
		{line: "Traceback (most recent call last):", noise: false},
		{line: "error: could not compile", noise: false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.noise, f.IsNoise(tt.line))
		})
	}
}

func TestExitStatusString(t *testing.T) {
	code := 1
	assert.Equal(t, "exit code 1", ExitStatus{Code: &code}.String())
	assert.Equal(t, "signal killed", ExitStatus{Signal: "killed"}.String())
	assert.Equal(t, "unknown exit status", ExitStatus{}.String())
}
