// Package main provides the PrEval CLI entry point.
// PrEval launches an evaluator process and monitors its metrics stream in a
// live terminal dashboard.
package main

import (
	"fmt"
	"os"

	"preval/internal/config"
	"preval/internal/version"

	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	detailed bool

	v = config.New()
	// exitCode is set by the root command and returned from main.
	exitCode int
)

// rootCmd runs an evaluator: everything after the flags is the evaluator command.
var rootCmd = &cobra.Command{
	Use:   "preval [flags] <evaluator command...>",
	Short: "PrEval - real-time evaluation monitor",
	Long: `PrEval launches an evaluator command, reads its handshake and OTLP metrics
from stdout, and shows progress, recent samples and a summary while it runs.

Flags must come before the evaluator command; everything after the first
argument is passed to the evaluator unchanged.`,
	Example: `  preval python eval.py --dataset qa
  preval --report run.yaml -- ./target/release/evaluator --fast`,
	Args:              cobra.MinimumNArgs(1),
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
	RunE:              runEvaluator,
}

// versionCmd prints build information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		if detailed {
			fmt.Fprintln(cmd.OutOrStdout(), version.GetDetailedVersion())
			return
		}
		fmt.Fprintln(cmd.OutOrStdout(), version.GetFormattedVersion())
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	os.Exit(exitCode)
}

func init() {
	flags := rootCmd.Flags()
	flags.SetInterspersed(false)

	persistent := rootCmd.PersistentFlags()
	persistent.StringVar(&cfgFile, config.KeyConfig, "", "Config file (default: ./preval.yaml)")
	persistent.String(config.KeyLogLevel, "", "Set log level (debug|info|warn|error) [default: info]")
	persistent.String(config.KeyLogFile, "", "Write logs to file (default in dashboard mode: preval.log)")
	persistent.Bool(config.KeyTestMode, false, "Run in deterministic test mode")

	flags.Duration(config.KeyHandshakeTimeout, config.DefaultHandshakeTimeout, "Time to wait for the evaluator handshake")
	flags.Duration(config.KeyGracePeriod, config.DefaultGracePeriod, "How long the final status stays on screen")
	flags.Duration(config.KeyTickInterval, config.DefaultTickInterval, "Redraw and timeout check interval")
	flags.Int(config.KeyChannelCapacity, config.DefaultChannelCapacity, "Buffered evaluator messages")
	flags.StringSlice(config.KeyStderrFilter, nil, "Extra evaluator stderr prefixes to ignore")
	flags.Duration(config.KeyPollFallback, config.DefaultPollFallback, "Also poll evaluator liveness at this interval (0 disables)")
	flags.String(config.KeyName, "", "Evaluator name shown before the handshake arrives")
	flags.String(config.KeyReport, "", "Write a run report to this file (.yaml, .json or .md)")
	flags.Bool(config.KeyPlain, false, "Print line-oriented progress instead of the dashboard")
	flags.String(config.KeyOutput, config.OutputText, "Plain output format (text|json)")
	flags.Bool(config.KeyQuiet, false, "Suppress plain progress lines, keeping the final summary")

	versionCmd.Flags().BoolVar(&detailed, "detailed", false, "Show detailed build information")
	rootCmd.AddCommand(versionCmd)
}

// loadConfig resolves .env files, the config file, PREVAL_* variables and flags.
func loadConfig(cmd *cobra.Command, _ []string) error {
	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return err
	}
	return config.ReadConfigFile(v, cfgFile)
}
