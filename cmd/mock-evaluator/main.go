// Package main provides mock-evaluator, a stand-in evaluator that emits a
// conforming handshake and OTLP metrics stream for demos and tests.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var opts = defaultOptions()

var rootCmd = &cobra.Command{
	Use:   "mock-evaluator",
	Short: "Emit a mock PrEval evaluation stream on stdout",
	Long: `mock-evaluator prints a handshake, one metrics message per sample and a final
summary message, pausing between samples. Progress notes go to stderr.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return newEmitter(os.Stdout, os.Stderr, opts).Run(ctx)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	os.Exit(opts.ExitCode)
}

func init() {
	flags := rootCmd.Flags()
	flags.IntVar(&opts.Samples, "samples", opts.Samples, "Number of samples to emit")
	flags.DurationVar(&opts.Delay, "delay", opts.Delay, "Pause between samples")
	flags.IntVar(&opts.FailEvery, "fail-every", opts.FailEvery, "Mark every Nth sample as failed (0 disables)")
	flags.IntVar(&opts.ExitCode, "exit-code", opts.ExitCode, "Exit status after the stream ends")
	flags.BoolVar(&opts.NoHandshake, "no-handshake", opts.NoHandshake, "Skip the handshake line")
	flags.BoolVar(&opts.NoPlan, "no-plan", opts.NoPlan, "Omit the execution plan from the handshake")
	flags.StringVar(&opts.Name, "name", opts.Name, "Evaluator name announced in the handshake")

}
