// Package main provides the CLI entry point for the Agent Core: a
// single LLM-driven agent loop that automates a local or SSH shell
// under risk-gated, confirmable tool dispatch (see SPEC_FULL.md).
//
// # Basic usage
//
// Run one task against the local shell:
//
//	agentcore run --config agentcore.yaml "install nginx and start it"
//
// Run against a configured remote host:
//
//	agentcore run --host prod "check disk usage and report back"
//
// Probe a host's capabilities:
//
//	agentcore doctor --host prod
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during release builds.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var configPath string

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	root := buildRootCmd()
	if err := root.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "agentcore",
		Short:        "Agent Core - LLM-driven local/SSH shell automation",
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "agentcore.yaml", "path to agentcore.yaml")

	root.AddCommand(buildRunCmd())
	root.AddCommand(buildSessionsCmd())
	root.AddCommand(buildDoctorCmd())
	return root
}
