package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"preval/internal/config"
	"preval/internal/logger"
	"preval/internal/orchestrator"
	"preval/internal/output"
	"preval/internal/process"
	"preval/internal/report"
	"preval/internal/ui"
	"preval/pkg/evaltypes"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
)

const (
	exitFailed      = 1
	exitInterrupted = 130
	summaryWidth    = 100
)

// terminalSession is the part of ui.Session the run loop depends on.
type terminalSession interface {
	Size() (width, height int, err error)
	Fd() int
	ColorProfile() termenv.Profile
	Close() error
}

var openSession = func(in, out *os.File) (terminalSession, error) {
	s, err := ui.OpenSession(in, out)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func runEvaluator(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	configureMessages(cfg)

	command, err := evaltypes.NewEvaluatorCommand(strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("invalid evaluator command: %w", err)
	}

	var session terminalSession
	if !cfg.Plain {
		session, err = openSession(os.Stdin, os.Stdout)
		switch {
		case errors.Is(err, ui.ErrNotTerminal):
			output.Warning("Not running in a terminal, falling back to plain output")
		case err != nil:
			return err
		}
	}
	// Restores the terminal on every exit path, panics included.
	defer closeSession(session)

	logFile := cfg.LogFile
	if session != nil && logFile == "" {
		logFile = logger.DefaultTUILogFile
	}
	if err := logger.Configure(cfg.LogLevel, logFile, cfg.TestMode); err != nil {
		return fmt.Errorf("configure logger: %w", err)
	}
	defer func() { _ = logger.Close() }()
	logger.Debug("Configuration loaded", "file", cfg.ConfigFile, "dashboard", session != nil)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts, err := orchestratorOptions(ctx, cfg, session)
	if err != nil {
		return err
	}

	var renderer orchestrator.Renderer
	if session != nil {
		width, height, sizeErr := session.Size()
		if sizeErr != nil {
			logger.Debug("Terminal size unavailable", "error", sizeErr)
		}
		renderer = ui.NewTerminalRenderer(os.Stdout, width, height, ui.WithColorProfile(session.ColorProfile()))
	} else {
		renderer = ui.NewPlainRenderer(plainPrinter(cfg, os.Stdout))
	}

	result, runErr := orchestrator.New(command, renderer, opts...).Run(ctx)
	// Leave the alternate screen before printing the summary.
	closeSession(session)

	if result != nil {
		finish(cfg, result)
	}
	return runErr
}

func orchestratorOptions(ctx context.Context, cfg *config.Config, session terminalSession) ([]orchestrator.Option, error) {
	procOpts := []process.Option{
		process.WithNoiseFilter(process.DefaultNoiseFilter(cfg.StderrFilter...)),
		process.WithLogger(logger.NewStyledLogger("Supervisor")),
	}
	if cfg.PollFallback > 0 {
		procOpts = append(procOpts, process.WithPollFallback(cfg.PollFallback))
	}

	opts := []orchestrator.Option{
		orchestrator.WithConfig(orchestrator.Config{
			HandshakeTimeout: cfg.HandshakeTimeout,
			GracePeriod:      cfg.GracePeriod,
			TickInterval:     cfg.TickInterval,
			ChannelCapacity:  cfg.ChannelCapacity,
		}),
		orchestrator.WithSpawner(orchestrator.SupervisorSpawner(procOpts...)),
	}

	if cfg.EvaluatorName != "" {
		name, err := evaltypes.NewEvaluatorName(cfg.EvaluatorName)
		if err != nil {
			return nil, fmt.Errorf("invalid --%s: %w", config.KeyName, err)
		}
		opts = append(opts, orchestrator.WithEvaluatorName(name))
	}

	if session != nil {
		input := ui.NewInputReader(os.Stdin, session.Fd(), cfg.ChannelCapacity)
		input.Start(ctx)
		opts = append(opts, orchestrator.WithActions(input.Actions()))
	}
	return opts, nil
}

// plainPrinter builds the printer for line-oriented runs.
func plainPrinter(cfg *config.Config, w io.Writer) *output.Printer {
	opts := []output.Option{
		output.WithWriter(w),
		output.WithStyles(output.NewThemeStyleProvider(output.DefaultTheme())),
	}
	if cfg.Output == config.OutputJSON {
		opts = append(opts, output.JSON())
	}
	if cfg.Quiet {
		opts = append(opts, output.Silent())
	}
	return output.NewPrinter(opts...)
}

// finish writes the report, prints the run summary and sets the exit code.
func finish(cfg *config.Config, result *orchestrator.Result) {
	r := report.Build(result.View, result.Interrupted, time.Now())

	if cfg.Report != "" {
		if err := r.WriteFile(cfg.Report); err != nil {
			logger.Error("Failed to write report", "path", cfg.Report, "error", err)
			output.Error(fmt.Sprintf("Failed to write report: %v", err))
		} else {
			logger.Info("Report written", "path", cfg.Report)
			output.Success("Report written to " + cfg.Report)
		}
	}

	switch {
	case cfg.Output == config.OutputJSON:
		if err := r.Write(os.Stdout, report.FormatJSON); err != nil {
			logger.Error("Failed to print report", "error", err)
		}
	case !cfg.TestMode:
		md := output.NewMarkdownRenderer(summaryWidth, output.IsTerminal(os.Stdout))
		fmt.Fprint(os.Stdout, md.Render(r.Markdown()))
	}

	switch {
	case result.Interrupted:
		exitCode = exitInterrupted
	case result.Status.Phase == evaltypes.PhaseFailed:
		exitCode = exitFailed
	}
}

// configureMessages points CLI messages at stderr in the run's output format.
func configureMessages(cfg *config.Config) {
	opts := []output.Option{
		output.WithWriter(os.Stderr),
		output.WithStyles(output.NewThemeStyleProvider(output.DefaultTheme())),
	}
	switch {
	case cfg.Output == config.OutputJSON:
		opts = append(opts, output.JSON())
	case cfg.TestMode:
		opts = append(opts, output.TestMode())
	}
	output.ConfigureGlobal(opts...)
}

func closeSession(session terminalSession) {
	if session == nil {
		return
	}
	if err := session.Close(); err != nil {
		logger.Warn("Failed to restore terminal", "error", err)
	}
}
