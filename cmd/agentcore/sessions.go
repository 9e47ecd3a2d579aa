package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentcore/shellpilot/internal/config"
)

// buildSessionsCmd lists the host targets a run can be pointed at.
// AgentRun/TerminalState are process-memory only (spec.md §3
// "Lifecycle" — no persistence is in scope), so there is no durable
// session log to query across process boundaries; this command
// surfaces the configured candidate targets instead, which is the
// closest durable analogue to "list live terminal sessions" a
// stateless CLI invocation can offer.
func buildSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List the host targets available to run/doctor",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			fmt.Println("local")
			for name, host := range cfg.Hosts {
				jump := ""
				if host.JumpHost != "" {
					jump = fmt.Sprintf(" (via %s)", host.JumpHost)
				}
				fmt.Printf("%s\t%s@%s:%d%s\n", name, host.User, host.Host, host.Port, jump)
			}
			return nil
		},
	}
}
