package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	gorillaws "github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/agentcore/shellpilot/internal/agent"
	"github.com/agentcore/shellpilot/internal/config"
	"github.com/agentcore/shellpilot/internal/eventbridge"
	"github.com/agentcore/shellpilot/internal/hostprofile"
)

var (
	runHost     string
	runProvider string
	runSystem   string
)

func buildRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [task]",
		Short: "Submit one task to the agent and stream its steps to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTask(cmd.Context(), args[0])
		},
	}
	cmd.Flags().StringVar(&runHost, "host", "local", `target host: "local" or a name from config "hosts"`)
	cmd.Flags().StringVar(&runProvider, "provider", "", "override the config's default llm provider")
	cmd.Flags().StringVar(&runSystem, "system", "", "override the default system prompt")
	return cmd
}

// defaultSystemPrompt follows spec.md §6's instruction to assemble the
// system prompt from OS/shell/host-profile facts rather than a static
// template.
func defaultSystemPrompt(profile string) string {
	var b strings.Builder
	b.WriteString("You are an autonomous shell agent. You have direct command execution and file access on the target host described below. Work carefully: prefer safe, reversible steps, and explain unusual commands before running them.\n\n")
	b.WriteString(profile)
	return b.String()
}

func runTask(ctx context.Context, task string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	driver, profile, err := connectTarget(ctx, cfg, runHost)
	if err != nil {
		return fmt.Errorf("connect to %q: %w", runHost, err)
	}
	defer driver.Dispose()

	env := buildRunEnvironment(driver, profile)

	provider, err := buildProvider(cfg, runProvider)
	if err != nil {
		return fmt.Errorf("build llm provider: %w", err)
	}

	registry := agent.NewToolRegistry()
	for _, tool := range agent.BuildBuiltinTools(env) {
		registry.Register(tool)
	}

	bridge := eventbridge.New(nil)
	stopServer, wsURL, err := serveBridge(bridge)
	if err != nil {
		return fmt.Errorf("start event bridge: %w", err)
	}
	defer stopServer()

	stopPrinter, err := printEventsFrom(wsURL)
	if err != nil {
		return fmt.Errorf("subscribe to event bridge: %w", err)
	}
	defer stopPrinter()

	executor := agent.NewExecutor(registry, env)
	executor.SetMetrics(agent.NewExecutorMetrics(prometheus.DefaultRegisterer))
	loop := agent.NewLoop(provider, executor, registry, bridge, env)
	loop.ContextLength = cfg.Compaction.ContextLength

	run := &agent.AgentRun{
		ID:         uuid.NewString(),
		TerminalID: driver.SessionID(),
		Status:     agent.RunRunning,
		Config:     toAgentRunConfig(cfg.Run),
		Reflection: agent.NewReflectionState(),
		Messages:   []agent.Message{{Role: agent.RoleUser, Content: task}},
	}

	systemPrompt := runSystem
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt(formatHostProfile(profile))
	}

	finalText, err := loop.Run(ctx, run, systemPrompt, toolSpecs(registry))
	// give the subscriber goroutine a moment to flush the terminal
	// event before the process tears down the bridge.
	time.Sleep(150 * time.Millisecond)
	if err != nil {
		return err
	}
	fmt.Println("\n--- final ---")
	fmt.Println(finalText)
	return nil
}

func formatHostProfile(p *hostprofile.Profile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Host: %s (%s %s)\n", p.HostID, p.OS, p.OSVersion)
	fmt.Fprintf(&b, "Shell: %s\n", p.Shell)
	if p.PackageManager != "" {
		fmt.Fprintf(&b, "Package manager: %s\n", p.PackageManager)
	}
	if len(p.InstalledTools) > 0 {
		fmt.Fprintf(&b, "Installed tools: %s\n", strings.Join(p.InstalledTools, ", "))
	}
	for _, note := range p.Notes {
		fmt.Fprintf(&b, "Note: %s\n", note)
	}
	return b.String()
}

// serveBridge starts a loopback HTTP server hosting bridge's WebSocket
// upgrade endpoint, returning a stop function and the ws:// URL to
// connect to. This is the same wire contract an external hosting
// process (e.g. the Electron shell named in spec.md §6) would use;
// the CLI dials it itself purely to render events to stdout.
func serveBridge(bridge *eventbridge.Bridge) (stop func(), wsURL string, err error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, "", err
	}
	mux := http.NewServeMux()
	mux.Handle("/events", bridge)
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Handler: mux}
	go srv.Serve(ln)

	addr := ln.Addr().String()
	return func() { srv.Close() }, "ws://" + addr + "/events", nil
}

// printEventsFrom connects to the bridge and prints every frame as a
// JSON line to stdout until closed.
func printEventsFrom(wsURL string) (stop func(), err error) {
	conn, _, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var evt eventbridge.Event
			if json.Unmarshal(data, &evt) == nil {
				fmt.Printf("[%s] %s\n", evt.Type, string(mustJSON(evt.Payload)))
			}
		}
	}()

	return func() {
		conn.Close()
		<-done
	}, nil
}

// toolSpecs converts the registry's executable Tool catalog into the
// LLM-facing ToolSpec list a CompletionRequest advertises.
func toolSpecs(registry *agent.ToolRegistry) []agent.ToolSpec {
	tools := registry.All()
	specs := make([]agent.ToolSpec, len(tools))
	for i, t := range tools {
		specs[i] = agent.ToolSpec{Name: t.Name(), Description: t.Description(), Schema: t.Schema()}
	}
	return specs
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte(fmt.Sprintf("%v", v))
	}
	return data
}
