package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentcore/shellpilot/internal/config"
	"github.com/agentcore/shellpilot/internal/hostprofile"
)

var doctorHost string

// buildDoctorCmd runs the host-probe script (spec.md §6 "a fixed
// command script") against a target and prints the parsed HostProfile,
// grounded on cmd/nexus's buildDoctorCmd diagnostics-runner shape.
func buildDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Probe a host's capabilities and print its HostProfile",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&doctorHost, "host", "local", `target host: "local" or a name from config "hosts"`)
	return cmd
}

func runDoctor(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	driver, profile, err := connectTarget(ctx, cfg, doctorHost)
	if err != nil {
		return fmt.Errorf("connect to %q: %w", doctorHost, err)
	}
	defer driver.Dispose()

	script := hostprofile.UnixProbeScript
	result, err := driver.ExecuteInTerminal(ctx, script, 10*time.Second)
	if err != nil {
		return fmt.Errorf("run probe script: %w", err)
	}

	profile.LastProbed = time.Now()
	hostprofile.Parse(profile, result.Output)
	profile.LastUpdated = time.Now()

	data, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
