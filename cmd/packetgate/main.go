// Package main provides the packetgate CLI, the admission and evidence
// tooling for packet-scoped work in isolated git worktrees. The `enter`
// subcommand runs the G0 admission gate before a packet runner starts;
// the `collect` subcommand captures the evidence bundle after it finishes.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:           "packetgate",
	Short:         "Admission gate and evidence harness for packet worktrees",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Usage and flag errors share the deny exit code, so callers scripting
	// against exit 0 never mistake a bad invocation for an admission.
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(2)
	}
}
