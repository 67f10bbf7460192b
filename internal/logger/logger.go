// Package logger provides centralized logging functionality for PrEval.
// It configures structured logging with support for different output destinations and log levels.
package logger

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

// EnvLogLevel is the environment variable consulted when no level flag is given.
const EnvLogLevel = "PREVAL_LOG_LEVEL"

// DefaultTUILogFile receives log output while the full-screen display owns the terminal.
const DefaultTUILogFile = "preval.log"

const timeFormat = "15:04:05.000"

// Logger is the global logger instance used throughout PrEval.
var Logger *log.Logger

var (
	outputMu sync.Mutex
	output   io.Writer = os.Stderr
	logFile  *os.File
	// timestamps are only reported when logging to a file
	timestamps bool
)

func init() {
	Logger = log.New(os.Stderr)
	Logger.SetTimeFormat("")
	Logger.SetLevel(log.InfoLevel)
}

// Configure sets up the logger based on CLI flags and environment variables.
// CLI flags take precedence over environment variables.
func Configure(logLevel string, file string, testMode bool) error {
	level := logLevel
	if level == "" {
		level = strings.ToLower(os.Getenv(EnvLogLevel))
	}
	if level == "" {
		level = "info"
	}

	var out io.Writer = os.Stderr
	var opened *os.File
	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return err
		}
		opened = f
		out = f
	}

	outputMu.Lock()
	if logFile != nil {
		_ = logFile.Close()
	}
	logFile = opened
	output = out
	timestamps = file != "" && !testMode
	outputMu.Unlock()

	Logger = log.New(out)
	Logger.SetLevel(parseLogLevel(level))
	Logger.SetReportTimestamp(timestamps)
	Logger.SetTimeFormat(timeFormat)

	if testMode {
		// Deterministic output: no timestamps, fixed level.
		Logger.SetLevel(log.InfoLevel)
	}

	return nil
}

// Close releases the log file opened by Configure, if any, and restores stderr output.
func Close() error {
	outputMu.Lock()
	defer outputMu.Unlock()

	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	output = os.Stderr
	Logger.SetOutput(os.Stderr)
	return err
}

// Output returns the writer the global logger currently writes to.
func Output() io.Writer {
	outputMu.Lock()
	defer outputMu.Unlock()
	return output
}

func reportTimestamps() bool {
	outputMu.Lock()
	defer outputMu.Unlock()
	return timestamps
}

// parseLogLevel converts string to log level
func parseLogLevel(level string) log.Level {
	switch strings.ToLower(level) {
	case "debug":
		return log.DebugLevel
	case "info":
		return log.InfoLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	case "fatal":
		return log.FatalLevel
	default:
		return log.InfoLevel
	}
}

// Debug logs a debug message with optional key-value pairs.
func Debug(msg interface{}, keyvals ...interface{}) {
	Logger.Debug(msg, keyvals...)
}

// Info logs an info message with optional key-value pairs.
func Info(msg interface{}, keyvals ...interface{}) {
	Logger.Info(msg, keyvals...)
}

// Warn logs a warning message with optional key-value pairs.
func Warn(msg interface{}, keyvals ...interface{}) {
	Logger.Warn(msg, keyvals...)
}

// Error logs an error message with optional key-value pairs.
func Error(msg interface{}, keyvals ...interface{}) {
	Logger.Error(msg, keyvals...)
}

// NewStyledLogger creates a new logger with custom styles and prefix for component-specific logging.
// The prefix names the component (e.g., "Supervisor", "Orchestrator").
// It writes wherever the global logger currently writes.
func NewStyledLogger(prefix string) *log.Logger {
	styles := log.DefaultStyles()

	styles.Levels[log.InfoLevel] = lipgloss.NewStyle().
		SetString("INFO").
		Padding(0, 1, 0, 1).
		Background(lipgloss.Color("33")). // Blue background
		Foreground(lipgloss.Color("15"))  // White text

	styles.Levels[log.ErrorLevel] = lipgloss.NewStyle().
		SetString("ERROR").
		Padding(0, 1, 0, 1).
		Background(lipgloss.Color("196")). // Red background
		Foreground(lipgloss.Color("15"))

	styles.Levels[log.DebugLevel] = lipgloss.NewStyle().
		SetString("DEBUG").
		Padding(0, 1, 0, 1).
		Background(lipgloss.Color("240")). // Gray background
		Foreground(lipgloss.Color("15"))

	styles.Levels[log.WarnLevel] = lipgloss.NewStyle().
		SetString("WARN").
		Padding(0, 1, 0, 1).
		Background(lipgloss.Color("214")). // Orange background
		Foreground(lipgloss.Color("15"))

	styles.Levels[log.FatalLevel] = lipgloss.NewStyle().
		SetString("FATAL").
		Padding(0, 1, 0, 1).
		Background(lipgloss.Color("88")). // Dark red background
		Foreground(lipgloss.Color("15"))

	styles.Keys["status"] = lipgloss.NewStyle().Foreground(lipgloss.Color("99")) // Purple
	styles.Keys["line"] = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))   // Blue
	styles.Keys["sample"] = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	styles.Keys["error"] = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styles.Keys["command"] = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	styles.Keys["pid"] = lipgloss.NewStyle().Foreground(lipgloss.Color("51"))

	styles.Values["status"] = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	styles.Values["error"] = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))

	componentLogger := log.NewWithOptions(Output(), log.Options{
		Prefix:          prefix + " ",
		ReportTimestamp: reportTimestamps(),
		TimeFormat:      timeFormat,
	})
	componentLogger.SetStyles(styles)
	componentLogger.SetLevel(Logger.GetLevel())

	return componentLogger
}
