// Package orchestrator runs one evaluation: it launches the evaluator, feeds
// its output through the protocol decoder into the evaluation state, handles
// user actions and renders the state once per loop iteration.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"preval/internal/logger"
	"preval/internal/process"
	"preval/internal/protocol"
	"preval/internal/state"
	"preval/pkg/evaltypes"

	"github.com/charmbracelet/log"
)

// Config holds the loop timings.
type Config struct {
	// HandshakeTimeout bounds the wait for a valid handshake after launch.
	HandshakeTimeout time.Duration
	// GracePeriod is how long a terminal status stays on screen before the loop exits.
	GracePeriod time.Duration
	// TickInterval paces timeout checks and redraws when nothing else happens.
	TickInterval time.Duration
	// ChannelCapacity is the buffer size of the evaluator message channel.
	ChannelCapacity int
}

// DefaultConfig returns the standard loop timings.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 5 * time.Second,
		GracePeriod:      2 * time.Second,
		TickInterval:     100 * time.Millisecond,
		ChannelCapacity:  100,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.GracePeriod < 0 {
		c.GracePeriod = 0
	}
	if c.TickInterval <= 0 {
		c.TickInterval = def.TickInterval
	}
	if c.ChannelCapacity <= 0 {
		c.ChannelCapacity = def.ChannelCapacity
	}
	return c
}

// Process is the handle the orchestrator keeps on a launched evaluator.
type Process interface {
	Kill() error
	Close() error
}

// Spawner launches command and streams its messages into sink. The spawner
// owns sink and may close it once nothing more will be sent.
type Spawner func(command evaltypes.EvaluatorCommand, sink chan<- process.Message) (Process, error)

// SupervisorSpawner returns a Spawner backed by process.Spawn.
func SupervisorSpawner(opts ...process.Option) Spawner {
	return func(command evaltypes.EvaluatorCommand, sink chan<- process.Message) (Process, error) {
		s, err := process.Spawn(command, sink, opts...)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// Renderer draws a read-only view of the evaluation state.
type Renderer interface {
	Render(view state.View) error
}

// Resizer is implemented by renderers that track terminal geometry.
type Resizer interface {
	Resize(width, height int)
}

// Refresher is implemented by renderers that can be forced to redraw fully.
type Refresher interface {
	Invalidate()
}

// Result describes how a run ended.
type Result struct {
	Status evaltypes.EvaluationStatus
	RunID  string
	// Transitions lists every status the run went through, starting with Starting.
	Transitions []evaltypes.EvaluationStatus
	// Interrupted is set when the user or the context ended the loop before a
	// terminal status was reached.
	Interrupted bool
	View        state.View
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConfig replaces the loop timings.
func WithConfig(c Config) Option {
	return func(o *Orchestrator) { o.config = c }
}

// WithSpawner replaces the process launcher.
func WithSpawner(s Spawner) Option {
	return func(o *Orchestrator) { o.spawn = s }
}

// WithActions sets the UI action source. A nil channel means no user input.
func WithActions(actions <-chan evaltypes.UIAction) Option {
	return func(o *Orchestrator) { o.actions = actions }
}

// WithEvaluatorName labels the run. Without it the name announced in the
// handshake is used.
func WithEvaluatorName(name evaltypes.EvaluatorName) Option {
	return func(o *Orchestrator) { o.name = &name }
}

// WithStateOptions passes options through to the evaluation state.
func WithStateOptions(opts ...state.Option) Option {
	return func(o *Orchestrator) { o.stateOpts = append(o.stateOpts, opts...) }
}

// WithLogger replaces the component logger.
func WithLogger(l *log.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// Orchestrator is the single writer of the evaluation state of one run.
type Orchestrator struct {
	config    Config
	command   evaltypes.EvaluatorCommand
	name      *evaltypes.EvaluatorName
	spawn     Spawner
	renderer  Renderer
	actions   <-chan evaltypes.UIAction
	stateOpts []state.Option
	logger    *log.Logger

	state       *state.State
	transitions []evaltypes.EvaluationStatus
	launchedAt  time.Time
	interrupted bool
}

// New creates an orchestrator for command. renderer may be nil.
func New(command evaltypes.EvaluatorCommand, renderer Renderer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		config:   DefaultConfig(),
		command:  command,
		renderer: renderer,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.config = o.config.withDefaults()
	if o.spawn == nil {
		o.spawn = SupervisorSpawner()
	}
	if o.logger == nil {
		o.logger = logger.NewStyledLogger("Orchestrator")
	}
	return o
}

// Run launches the evaluator and drives the event loop until the run reaches
// a terminal status and its grace period elapses, the user quits, the action
// channel closes or ctx is cancelled. The evaluator is killed on every exit
// path.
//
// A launch failure returns an error together with a Failed result; every
// other outcome is reported through Result.Status.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	o.state = state.New(o.stateOpts...)
	o.transitions = []evaltypes.EvaluationStatus{o.state.Status()}
	if o.name != nil {
		if err := o.state.SetEvaluatorName(*o.name); err != nil {
			o.logger.Error("Failed to set evaluator name", "error", err)
		}
	}

	messages := make(chan process.Message, o.config.ChannelCapacity)
	proc, err := o.spawn(o.command, messages)
	if err != nil {
		o.transition(evaltypes.StatusFailed(fmt.Sprintf("failed to launch evaluator: %v", err)))
		o.render()
		return o.result(), fmt.Errorf("launch evaluator: %w", err)
	}
	defer func() {
		if err := proc.Close(); err != nil {
			o.logger.Debug("Evaluator cleanup failed", "error", err)
		}
	}()

	o.launchedAt = time.Now()
	o.transition(evaltypes.StatusWaitingForHandshake())

	o.loop(ctx, messages)

	if err := proc.Kill(); err != nil {
		o.logger.Warn("Failed to kill evaluator", "error", err)
	}
	return o.result(), nil
}

func (o *Orchestrator) loop(ctx context.Context, messages <-chan process.Message) {
	ticker := time.NewTicker(o.config.TickInterval)
	defer ticker.Stop()

	var graceTimer *time.Timer
	var grace <-chan time.Time
	defer func() {
		if graceTimer != nil {
			graceTimer.Stop()
		}
	}()

	for {
		o.render()

		if grace == nil && o.state.IsTerminal() {
			graceTimer = time.NewTimer(o.config.GracePeriod)
			grace = graceTimer.C
		}

		select {
		case <-ctx.Done():
			o.quit("context cancelled")
			return

		case action, ok := <-o.actions:
			if !ok {
				o.quit("input closed")
				return
			}
			if action.Kind == evaltypes.ActionQuit {
				o.quit("quit requested")
				return
			}
			o.handleAction(action)

		case msg, ok := <-messages:
			if !ok {
				messages = nil
				o.handleClosed()
				continue
			}
			o.handleMessage(msg)

		case <-ticker.C:
			o.checkHandshakeTimeout()

		case <-grace:
			o.logger.Debug("Grace period over", "status", o.state.Status())
			return
		}
	}
}

func (o *Orchestrator) quit(reason string) {
	if !o.state.IsTerminal() {
		o.interrupted = true
	}
	o.logger.Info("Stopping evaluation", "reason", reason, "status", o.state.Status())
}

func (o *Orchestrator) handleAction(action evaltypes.UIAction) {
	switch action.Kind {
	case evaltypes.ActionTogglePause:
		o.state.TogglePause()
		o.logger.Debug("Display pause toggled", "paused", o.state.IsPaused())
	case evaltypes.ActionResize:
		if r, ok := o.renderer.(Resizer); ok {
			r.Resize(action.Width, action.Height)
		}
	case evaltypes.ActionRefresh:
		if r, ok := o.renderer.(Refresher); ok {
			r.Invalidate()
		}
	}
}

func (o *Orchestrator) handleMessage(msg process.Message) {
	if o.state.IsTerminal() {
		o.logger.Debug("Ignoring evaluator message after terminal status", "line", msg.Line)
		return
	}

	switch msg.Kind {
	case process.KindExited:
		o.handleExit(msg.Status)
	case process.KindOutput:
		if msg.Stderr {
			o.logger.Warn("Evaluator diagnostic", "line", strings.TrimPrefix(msg.Line, process.StderrPrefix))
			o.checkHandshakeTimeout()
			return
		}
		if o.state.Handshake() == nil {
			o.handleHandshakeLine(msg.Line)
			return
		}
		o.handleMetricsLine(msg.Line)
	}
}

func (o *Orchestrator) handleHandshakeLine(line string) {
	hs, err := protocol.ParseHandshake(line)
	if err != nil {
		o.logger.Debug("Line is not a valid handshake", "line", line, "error", err)
		o.checkHandshakeTimeout()
		return
	}

	if err := o.state.SetHandshake(hs); err != nil {
		o.logger.Error("Failed to record handshake", "error", err)
		return
	}
	if o.name == nil {
		o.adoptEvaluatorName(hs.Evaluator.Name)
	}
	if err := protocol.CheckProtocolCompatibility(hs.Version); err != nil {
		o.logger.Warn("Evaluator protocol may be incompatible", "error", err)
	}

	o.logger.Info("Handshake received", "evaluator", hs.Evaluator.Name, "mode", hs.Mode, "version", hs.Version)
	o.transition(evaltypes.StatusCollecting(0, hs.TotalSamples()))
}

// adoptEvaluatorName labels the run with the handshake's evaluator name.
func (o *Orchestrator) adoptEvaluatorName(raw string) {
	name, err := evaltypes.NewEvaluatorName(raw)
	if err != nil {
		o.logger.Warn("Handshake evaluator name not adopted", "error", err)
		return
	}
	if err := o.state.SetEvaluatorName(name); err != nil {
		o.logger.Error("Failed to set evaluator name", "error", err)
	}
}

func (o *Orchestrator) handleMetricsLine(line string) {
	md, err := protocol.ParseMetricsLine(line)
	if err != nil {
		o.logger.Warn("Dropping invalid metrics line", "line", line, "error", err)
		return
	}
	if err := o.state.AddMetrics(md); err != nil {
		o.logger.Error("Failed to add metrics", "error", err)
		return
	}
	o.logger.Debug("Metrics added", "status", o.state.Status(), "sample", o.state.CurrentSample(), "summary", md.IsSummary())
}

func (o *Orchestrator) handleExit(status process.ExitStatus) {
	switch {
	case o.state.Handshake() == nil:
		o.transition(evaltypes.StatusFailed(fmt.Sprintf("evaluator exited before sending handshake (%s)", status)))
	case status.Success:
		o.transition(evaltypes.StatusCompleted())
	default:
		o.transition(evaltypes.StatusFailed(fmt.Sprintf("evaluator exited with %s", status)))
	}
}

func (o *Orchestrator) handleClosed() {
	if o.state.IsTerminal() {
		return
	}
	if o.state.Handshake() == nil {
		o.transition(evaltypes.StatusFailed("evaluator terminated before handshake"))
		return
	}
	o.transition(evaltypes.StatusFailed("evaluator terminated unexpectedly"))
}

func (o *Orchestrator) checkHandshakeTimeout() {
	if o.state.Handshake() != nil || o.state.IsTerminal() {
		return
	}
	if time.Since(o.launchedAt) <= o.config.HandshakeTimeout {
		return
	}
	o.transition(evaltypes.StatusFailed(fmt.Sprintf(
		"handshake timeout: no valid handshake received within %s", o.config.HandshakeTimeout)))
}

// transition applies next and records it. A rejected transition is logged.
func (o *Orchestrator) transition(next evaltypes.EvaluationStatus) {
	if err := o.state.UpdateStatus(next); err != nil {
		o.logger.Error("Rejected status transition", "status", next, "error", err)
		return
	}
	o.transitions = append(o.transitions, next)
	if next.Phase == evaltypes.PhaseFailed {
		o.logger.Error("Evaluation failed", "status", next)
		return
	}
	o.logger.Info("Status changed", "status", next)
}

func (o *Orchestrator) render() {
	if o.renderer == nil {
		return
	}
	if err := o.renderer.Render(o.state); err != nil {
		o.logger.Debug("Render failed", "error", err)
	}
}

func (o *Orchestrator) result() *Result {
	transitions := make([]evaltypes.EvaluationStatus, len(o.transitions))
	copy(transitions, o.transitions)
	return &Result{
		Status:      o.state.Status(),
		RunID:       o.state.RunID(),
		Transitions: transitions,
		Interrupted: o.interrupted,
		View:        o.state,
	}
}
