// Package config resolves PrEval settings from flags, PREVAL_* environment
// variables, an optional preval.yaml file and .env files, in that order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by PrEval.
const EnvPrefix = "PREVAL"

// Configuration keys. Flags use the same names.
const (
	KeyConfig           = "config"
	KeyLogLevel         = "log-level"
	KeyLogFile          = "log-file"
	KeyTestMode         = "test-mode"
	KeyHandshakeTimeout = "handshake-timeout"
	KeyGracePeriod      = "grace-period"
	KeyTickInterval     = "tick-interval"
	KeyChannelCapacity  = "channel-capacity"
	KeyStderrFilter     = "stderr-filter"
	KeyReport           = "report"
	KeyPlain            = "plain"
	KeyPollFallback     = "poll-fallback"
	KeyName             = "name"
	KeyOutput           = "output"
	KeyQuiet            = "quiet"
)

// Plain output formats.
const (
	OutputText = "text"
	OutputJSON = "json"
)

// Default values.
const (
	DefaultHandshakeTimeout = 5 * time.Second
	DefaultGracePeriod      = 2 * time.Second
	DefaultTickInterval     = 100 * time.Millisecond
	DefaultChannelCapacity  = 100
	DefaultPollFallback     = time.Duration(0)
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the resolved configuration of one run.
type Config struct {
	LogLevel string
	LogFile  string
	TestMode bool

	HandshakeTimeout time.Duration
	GracePeriod      time.Duration
	TickInterval     time.Duration
	ChannelCapacity  int

	// StderrFilter lists extra diagnostic prefixes to drop.
	StderrFilter []string
	// PollFallback enables liveness polling at this interval; 0 disables it.
	PollFallback time.Duration

	EvaluatorName string
	Report        string
	Plain         bool
	// Output is the plain-mode line format, OutputText or OutputJSON.
	Output string
	// Quiet suppresses plain-mode progress lines.
	Quiet bool

	// ConfigFile is the file the values were read from, if any.
	ConfigFile string
}

// New returns a viper instance with PrEval defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyLogLevel, "")
	v.SetDefault(KeyLogFile, "")
	v.SetDefault(KeyTestMode, false)
	v.SetDefault(KeyHandshakeTimeout, DefaultHandshakeTimeout)
	v.SetDefault(KeyGracePeriod, DefaultGracePeriod)
	v.SetDefault(KeyTickInterval, DefaultTickInterval)
	v.SetDefault(KeyChannelCapacity, DefaultChannelCapacity)
	v.SetDefault(KeyStderrFilter, []string{})
	v.SetDefault(KeyPollFallback, DefaultPollFallback)
	v.SetDefault(KeyName, "")
	v.SetDefault(KeyReport, "")
	v.SetDefault(KeyPlain, false)
	v.SetDefault(KeyOutput, OutputText)
	v.SetDefault(KeyQuiet, false)
	return v
}

// BindFlags binds every flag in flags whose name is a configuration key.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var bindErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if bindErr != nil || f.Name == KeyConfig {
			return
		}
		if err := v.BindPFlag(f.Name, f); err != nil {
			bindErr = fmt.Errorf("bind flag %s: %w", f.Name, err)
		}
	})
	return bindErr
}

// ReadConfigFile reads file, or when file is empty searches for preval.yaml
// in the working directory and the user config directory. A missing search
// result is not an error; a missing explicit file is.
func ReadConfigFile(v *viper.Viper, file string) error {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("preval")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "preval"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// LoadDotEnv loads KEY=VALUE files into the process environment. Variables
// already set are left untouched and missing files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// Load resolves and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		LogLevel:         strings.ToLower(v.GetString(KeyLogLevel)),
		LogFile:          v.GetString(KeyLogFile),
		TestMode:         v.GetBool(KeyTestMode),
		HandshakeTimeout: v.GetDuration(KeyHandshakeTimeout),
		GracePeriod:      v.GetDuration(KeyGracePeriod),
		TickInterval:     v.GetDuration(KeyTickInterval),
		ChannelCapacity:  v.GetInt(KeyChannelCapacity),
		StderrFilter:     splitList(v.GetStringSlice(KeyStderrFilter)),
		PollFallback:     v.GetDuration(KeyPollFallback),
		EvaluatorName:    strings.TrimSpace(v.GetString(KeyName)),
		Report:           v.GetString(KeyReport),
		Plain:            v.GetBool(KeyPlain),
		Output:           strings.ToLower(strings.TrimSpace(v.GetString(KeyOutput))),
		Quiet:            v.GetBool(KeyQuiet),
		ConfigFile:       v.ConfigFileUsed(),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.HandshakeTimeout <= 0:
		return fmt.Errorf("%w: %s must be positive, got %s", ErrInvalid, KeyHandshakeTimeout, c.HandshakeTimeout)
	case c.TickInterval <= 0:
		return fmt.Errorf("%w: %s must be positive, got %s", ErrInvalid, KeyTickInterval, c.TickInterval)
	case c.GracePeriod < 0:
		return fmt.Errorf("%w: %s must not be negative, got %s", ErrInvalid, KeyGracePeriod, c.GracePeriod)
	case c.PollFallback < 0:
		return fmt.Errorf("%w: %s must not be negative, got %s", ErrInvalid, KeyPollFallback, c.PollFallback)
	case c.ChannelCapacity <= 0:
		return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalid, KeyChannelCapacity, c.ChannelCapacity)
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "warning", "error", "fatal":
	default:
		return fmt.Errorf("%w: unknown %s %q", ErrInvalid, KeyLogLevel, c.LogLevel)
	}
	switch c.Output {
	case "", OutputText, OutputJSON:
	default:
		return fmt.Errorf("%w: unknown %s %q", ErrInvalid, KeyOutput, c.Output)
	}
	return nil
}

// splitList flattens comma-separated entries and drops blanks.
func splitList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
