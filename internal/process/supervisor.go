package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"preval/internal/logger"
	"preval/pkg/evaltypes"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrEmptyCommand is returned when the command has no program to run.
	ErrEmptyCommand = errors.New("evaluator command is empty")
	// ErrCaptureOutput is returned when the output streams cannot be attached.
	ErrCaptureOutput = errors.New("failed to capture evaluator output")
)

const (
	defaultDrainTimeout = 2 * time.Second
	defaultMaxLineSize  = 4 * 1024 * 1024
)

type options struct {
	filter       NoiseFilter
	pollInterval time.Duration
	drainTimeout time.Duration
	maxLineSize  int
	logger       *log.Logger
}

// Option configures a Supervisor.
type Option func(*options)

// WithNoiseFilter replaces the stderr noise filter.
func WithNoiseFilter(f NoiseFilter) Option {
	return func(o *options) { o.filter = f }
}

// WithPollFallback enables a liveness poll at the given interval. It only
// reports an exit (with an unknown code) when the process disappears without
// being reaped by the supervisor's own wait.
func WithPollFallback(interval time.Duration) Option {
	return func(o *options) { o.pollInterval = interval }
}

// WithDrainTimeout bounds how long output is drained after the process exits
// while a descendant still holds the pipes open.
func WithDrainTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.drainTimeout = d
		}
	}
}

// WithMaxLineSize sets the longest line the pumps accept.
func WithMaxLineSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxLineSize = n
		}
	}
}

// WithLogger sets the component logger.
func WithLogger(l *log.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Supervisor owns one running evaluator process. It is the only component
// allowed to terminate it.
type Supervisor struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr io.ReadCloser
	sink   chan<- Message
	opts   options
	logger *log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	pumps  errgroup.Group
	poller sync.WaitGroup

	reaped    chan struct{}
	done      chan struct{}
	exitOnce  sync.Once
	closeOnce sync.Once
}

// Spawn launches command and starts streaming its output into sink. The
// command is split on whitespace without quoting support.
//
// Spawn takes ownership of sink: it is closed after the exit message, once
// every producer has stopped.
func Spawn(command evaltypes.EvaluatorCommand, sink chan<- Message, opts ...Option) (*Supervisor, error) {
	o := options{
		filter:       DefaultNoiseFilter(),
		drainTimeout: defaultDrainTimeout,
		maxLineSize:  defaultMaxLineSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.NewStyledLogger("Supervisor")
	}

	fields := command.Fields()
	if len(fields) == 0 {
		return nil, ErrEmptyCommand
	}

	cmd := exec.Command(fields[0], fields[1:]...)
	configureProcess(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdout: %v", ErrCaptureOutput, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stderr: %v", ErrCaptureOutput, err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to spawn evaluator %q: %w", fields[0], err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Supervisor{
		cmd:    cmd,
		stdout: stdout,
		stderr: stderr,
		sink:   sink,
		opts:   o,
		logger: o.logger,
		ctx:    ctx,
		cancel: cancel,
		reaped: make(chan struct{}),
		done:   make(chan struct{}),
	}

	s.pumps.Go(s.pumpStdout)
	s.pumps.Go(s.pumpStderr)
	if o.pollInterval > 0 {
		s.poller.Add(1)
		go s.poll()
	}
	go s.wait()

	s.logger.Info("Evaluator started", "command", command.String(), "pid", cmd.Process.Pid)
	return s, nil
}

// Pid returns the evaluator's process id.
func (s *Supervisor) Pid() int {
	return s.cmd.Process.Pid
}

// Done is closed once the exit has been reported and the sink closed.
func (s *Supervisor) Done() <-chan struct{} {
	return s.done
}

// Kill terminates the evaluator and its process group. Killing a process
// that has already exited is a no-op.
func (s *Supervisor) Kill() error {
	select {
	case <-s.reaped:
		return nil
	default:
	}
	if err := terminateProcess(s.cmd); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to kill evaluator: %w", err)
	}
	return nil
}

// Close kills the evaluator, stops every producer and waits briefly for the
// supervisor goroutines to finish. It is safe to call more than once.
func (s *Supervisor) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.Kill()
		s.cancel()
		select {
		case <-s.done:
		case <-time.After(s.opts.drainTimeout * 2):
			s.logger.Warn("Supervisor goroutines did not stop in time")
		}
	})
	return err
}

// send delivers msg unless the supervisor has been closed.
func (s *Supervisor) send(msg Message) bool {
	select {
	case s.sink <- msg:
		return true
	case <-s.ctx.Done():
		return false
	}
}

func (s *Supervisor) newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), s.opts.maxLineSize)
	return scanner
}

func (s *Supervisor) pumpStdout() error {
	scanner := s.newScanner(s.stdout)
	for scanner.Scan() {
		if !s.send(Output(scanner.Text())) {
			return nil
		}
	}
	return s.finishStream("stdout", s.stdout, scanner.Err())
}

func (s *Supervisor) pumpStderr() error {
	scanner := s.newScanner(s.stderr)
	for scanner.Scan() {
		line := scanner.Text()
		if s.opts.filter.IsNoise(line) {
			continue
		}
		if !s.send(Diagnostic(line)) {
			return nil
		}
	}
	return s.finishStream("stderr", s.stderr, scanner.Err())
}

// finishStream classifies a pump's terminal error. After an oversized line
// the rest of the stream is discarded so the evaluator never blocks on a
// full pipe.
func (s *Supervisor) finishStream(stream string, r io.Reader, err error) error {
	switch {
	case err == nil, errors.Is(err, os.ErrClosed):
		return nil
	case errors.Is(err, bufio.ErrTooLong):
		s.logger.Error("Evaluator line exceeds maximum size, discarding rest of stream", "stream", stream, "max", s.opts.maxLineSize)
		_, _ = io.Copy(io.Discard, r)
		return nil
	default:
		return fmt.Errorf("reading evaluator %s: %w", stream, err)
	}
}

// wait reaps the process, drains both pumps and then reports the exit, so
// Exited always follows the last line of output.
func (s *Supervisor) wait() {
	defer close(s.done)

	state, err := s.cmd.Process.Wait()
	close(s.reaped)
	if err != nil {
		s.logger.Error("Waiting for evaluator failed", "error", err)
	}
	status := exitStatusFrom(state, err)
	s.logger.Debug("Evaluator process ended", "status", status.String())

	s.drain()
	s.poller.Wait()
	s.reportExit(status)
	close(s.sink)
}

func (s *Supervisor) drain() {
	drained := make(chan error, 1)
	go func() { drained <- s.pumps.Wait() }()

	var err error
	select {
	case err = <-drained:
	case <-time.After(s.opts.drainTimeout):
		s.logger.Warn("Evaluator output still open after exit, closing streams")
		_ = s.stdout.Close()
		_ = s.stderr.Close()
		err = <-drained
	}
	if err != nil {
		s.logger.Error("Output stream error", "error", err)
	}
	_ = s.stdout.Close()
	_ = s.stderr.Close()
}

func (s *Supervisor) reportExit(status ExitStatus) {
	s.exitOnce.Do(func() {
		s.send(Exited(status))
	})
}

func (s *Supervisor) poll() {
	defer s.poller.Done()

	ticker := time.NewTicker(s.opts.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.reaped:
			return
		case <-ticker.C:
			if processAlive(s.cmd.Process) {
				continue
			}
			// Give the waiter one more interval to claim the exit.
			select {
			case <-s.reaped:
				return
			case <-time.After(s.opts.pollInterval):
			}
			s.logger.Warn("Evaluator disappeared without being reaped")
			s.reportExit(ExitStatus{})
			return
		}
	}
}
