package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(New())
	require.NoError(t, err)

	assert.Equal(t, DefaultHandshakeTimeout, cfg.HandshakeTimeout)
	assert.Equal(t, DefaultGracePeriod, cfg.GracePeriod)
	assert.Equal(t, DefaultTickInterval, cfg.TickInterval)
	assert.Equal(t, DefaultChannelCapacity, cfg.ChannelCapacity)
	assert.Zero(t, cfg.PollFallback)
	assert.Empty(t, cfg.StderrFilter)
	assert.Empty(t, cfg.LogLevel)
	assert.False(t, cfg.Plain)
	assert.Equal(t, OutputText, cfg.Output)
	assert.False(t, cfg.Quiet)
	assert.Empty(t, cfg.ConfigFile)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("PREVAL_HANDSHAKE_TIMEOUT", "3s")
	t.Setenv("PREVAL_GRACE_PERIOD", "0s")
	t.Setenv("PREVAL_CHANNEL_CAPACITY", "7")
	t.Setenv("PREVAL_STDERR_FILTER", "Downloading, Resolving")
	t.Setenv("PREVAL_LOG_LEVEL", "DEBUG")
	t.Setenv("PREVAL_PLAIN", "true")
	t.Setenv("PREVAL_OUTPUT", "JSON")
	t.Setenv("PREVAL_QUIET", "1")

	cfg, err := Load(New())
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.HandshakeTimeout)
	assert.Zero(t, cfg.GracePeriod)
	assert.Equal(t, 7, cfg.ChannelCapacity)
	assert.Equal(t, []string{"Downloading", "Resolving"}, cfg.StderrFilter)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.Plain)
	assert.Equal(t, OutputJSON, cfg.Output)
	assert.True(t, cfg.Quiet)
}

func TestLoad_FlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("PREVAL_TICK_INTERVAL", "1s")

	flags := pflag.NewFlagSet("preval", pflag.ContinueOnError)
	flags.Duration(KeyTickInterval, DefaultTickInterval, "")
	flags.StringSlice(KeyStderrFilter, nil, "")
	flags.String(KeyName, "", "")
	flags.String(KeyConfig, "", "")
	require.NoError(t, flags.Parse([]string{
		"--tick-interval=250ms",
		"--stderr-filter=Fetching,Linking",
		"--name", "  my eval  ",
	}))

	v := New()
	require.NoError(t, BindFlags(v, flags))
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cfg.TickInterval)
	assert.Equal(t, []string{"Fetching", "Linking"}, cfg.StderrFilter)
	assert.Equal(t, "my eval", cfg.EvaluatorName)
}

func TestLoad_UnsetFlagKeepsEnvironment(t *testing.T) {
	t.Setenv("PREVAL_TICK_INTERVAL", "1s")

	flags := pflag.NewFlagSet("preval", pflag.ContinueOnError)
	flags.Duration(KeyTickInterval, DefaultTickInterval, "")
	require.NoError(t, flags.Parse(nil))

	v := New()
	require.NoError(t, BindFlags(v, flags))
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, time.Second, cfg.TickInterval)
}

func TestReadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "custom.yaml", `
handshake-timeout: 10s
poll-fallback: 500ms
stderr-filter:
  - Downloading
report: run.json
`)

	v := New()
	require.NoError(t, ReadConfigFile(v, path))
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.HandshakeTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.PollFallback)
	assert.Equal(t, []string{"Downloading"}, cfg.StderrFilter)
	assert.Equal(t, "run.json", cfg.Report)
	assert.Equal(t, path, cfg.ConfigFile)
}

func TestReadConfigFile_Search(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "preval.yaml", "grace-period: 1s\n")
	t.Chdir(dir)

	v := New()
	require.NoError(t, ReadConfigFile(v, ""))
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, time.Second, cfg.GracePeriod)
}

func TestReadConfigFile_Missing(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	assert.NoError(t, ReadConfigFile(New(), ""), "a missing searched file is not an error")
	assert.Error(t, ReadConfigFile(New(), filepath.Join(t.TempDir(), "absent.yaml")))
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			HandshakeTimeout: time.Second,
			TickInterval:     time.Millisecond,
			ChannelCapacity:  1,
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero handshake timeout", func(c *Config) { c.HandshakeTimeout = 0 }},
		{"negative tick", func(c *Config) { c.TickInterval = -time.Second }},
		{"negative grace", func(c *Config) { c.GracePeriod = -time.Second }},
		{"negative poll", func(c *Config) { c.PollFallback = -time.Second }},
		{"zero capacity", func(c *Config) { c.ChannelCapacity = 0 }},
		{"unknown level", func(c *Config) { c.LogLevel = "verbose" }},
		{"unknown output", func(c *Config) { c.Output = "xml" }},
	}

	base := valid()
	require.NoError(t, base.Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, ".env", "PREVAL_TEST_DOTENV_NEW=from-file\nPREVAL_TEST_DOTENV_SET=from-file\n")

	t.Setenv("PREVAL_TEST_DOTENV_SET", "from-env")
	t.Setenv("PREVAL_TEST_DOTENV_NEW", "")
	require.NoError(t, os.Unsetenv("PREVAL_TEST_DOTENV_NEW"))

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), path))
	assert.Equal(t, "from-file", os.Getenv("PREVAL_TEST_DOTENV_NEW"))
	assert.Equal(t, "from-env", os.Getenv("PREVAL_TEST_DOTENV_SET"))
	require.NoError(t, os.Unsetenv("PREVAL_TEST_DOTENV_NEW"))
}
