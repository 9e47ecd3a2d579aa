package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/agentcore/shellpilot/internal/agent"
	"github.com/agentcore/shellpilot/internal/agent/providers"
	"github.com/agentcore/shellpilot/internal/config"
	"github.com/agentcore/shellpilot/internal/hostprofile"
	"github.com/agentcore/shellpilot/internal/sensor"
	"github.com/agentcore/shellpilot/internal/termstate"
	"github.com/agentcore/shellpilot/internal/terminal"
)

// buildTerminalProfile resolves a named host from cfg.Hosts into a
// terminal.SSHProfile, recursively resolving a jump host chain.
func buildTerminalProfile(cfg *config.Config, name string, depth int) (terminal.SSHProfile, error) {
	if depth > 4 {
		return terminal.SSHProfile{}, fmt.Errorf("jump host chain too deep at %q", name)
	}
	host, ok := cfg.Hosts[name]
	if !ok {
		return terminal.SSHProfile{}, fmt.Errorf("no host profile named %q in config", name)
	}

	profile := terminal.SSHProfile{Host: host.Host, Port: host.Port, User: host.User}
	if host.PrivateKeyPath != "" {
		signer, err := loadSigner(host.PrivateKeyPath, host.Passphrase)
		if err != nil {
			return terminal.SSHProfile{}, fmt.Errorf("host %q: %w", name, err)
		}
		profile.Auth = signer
	}
	if host.JumpHost != "" {
		jump, err := buildTerminalProfile(cfg, host.JumpHost, depth+1)
		if err != nil {
			return terminal.SSHProfile{}, err
		}
		profile.JumpHost = &jump
	}
	return profile, nil
}

func loadSigner(path, passphrase string) (ssh.Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	if passphrase != "" {
		return ssh.ParsePrivateKeyWithPassphrase(data, []byte(passphrase))
	}
	return ssh.ParsePrivateKey(data)
}

// connectTarget dials either the local shell (hostName == "" or
// "local") or a named SSH profile, and seeds the matching HostProfile.
func connectTarget(ctx context.Context, cfg *config.Config, hostName string) (terminal.Driver, *hostprofile.Profile, error) {
	if hostName == "" || hostName == "local" {
		driver, err := terminal.NewLocalDriver(ctx)
		if err != nil {
			return nil, nil, err
		}
		return driver, hostprofile.NewLocalProfile(), nil
	}

	profile, err := buildTerminalProfile(cfg, hostName, 0)
	if err != nil {
		return nil, nil, err
	}
	driver, err := terminal.DialSSH(ctx, profile)
	if err != nil {
		return nil, nil, err
	}
	return driver, hostprofile.NewRemoteProfile(profile.User, profile.Host), nil
}

// buildRunEnvironment wires one C6/C8 RunEnvironment around driver:
// a termstate.Tracker session, a realtime output ring buffer, and an
// Awareness callback synthesizing C5's verdict on demand. Grounded on
// spec.md §4.5/§4.6's "the executor receives ... a way to reach the
// terminal driver" contract; this composition lives in the CLI since
// it is the process boundary where driver/tracker/profile all come
// into existence together.
func buildRunEnvironment(driver terminal.Driver, profile *hostprofile.Profile) *agent.RunEnvironment {
	tracker := termstate.NewTracker()
	kind := termstate.SessionLocal
	if driver.Kind() == terminal.KindSSH {
		kind = termstate.SessionSSH
	}
	tracker.Register(driver.SessionID(), kind, "")

	var buf []byte
	driver.OnData(func(data []byte) {
		buf = append(buf, data...)
		if len(buf) > 64*1024 {
			buf = buf[len(buf)-64*1024:]
		}
		tracker.AppendOutput(driver.SessionID(), string(data))
	})

	window := sensor.NewRateWindow()
	analyzer := sensor.NewAnalyzer()

	return &agent.RunEnvironment{
		Driver:  driver,
		Tracker: tracker,
		Profile: profile,
		Awareness: func(ctx context.Context) (sensor.Awareness, error) {
			st, _ := tracker.Get(driver.SessionID())
			startedAt := st.LastActivity
			if st.CurrentExecution != nil {
				startedAt = st.CurrentExecution.StartedAt
			}
			var proc sensor.ProcessState
			var err error
			if driver.Kind() == terminal.KindSSH {
				proc, _, err = sensor.RemoteProcessState(ctx, driver, st.LastCommand, startedAt, window)
			} else {
				proc, err = sensor.LocalProcessState(ctx, driver, st.LastCommand, startedAt, window)
			}
			if err != nil {
				return sensor.Awareness{}, err
			}
			input := analyzer.Analyze(driver.SessionID(), string(buf))
			env := sensor.EnvironmentContext{
				SessionID:       driver.SessionID(),
				CWD:             st.CWD,
				RecentExitCode:  st.LastExitCode,
				LastCommandText: st.LastCommand,
			}
			return sensor.Synthesize(proc, input, env), nil
		},
		RealtimeBuffer: func() []byte { return buf },
	}
}

// buildProvider constructs the C7 LLMProvider named by cfg's default
// provider (or override), per SPEC_FULL.md §6 "C7 LLM Client —
// provider selection".
func buildProvider(cfg *config.Config, override string) (agent.LLMProvider, error) {
	name := cfg.LLM.DefaultProvider
	if override != "" {
		name = override
	}
	pc, ok := cfg.LLM.Providers[name]
	if !ok {
		return nil, fmt.Errorf("no llm.providers entry named %q", name)
	}

	switch pc.Kind {
	case "", "anthropic":
		return providers.NewAnthropicProvider(providers.AnthropicConfig{
			APIKey:       pc.APIKey,
			BaseURL:      pc.BaseURL,
			DefaultModel: pc.DefaultModel,
			MaxRetries:   pc.MaxRetries,
			RetryDelay:   pc.RetryDelay,
		})
	case "openai":
		return providers.NewOpenAIProvider(pc.APIKey, pc.BaseURL, pc.DefaultModel)
	case "bedrock":
		return providers.NewBedrockProvider(providers.BedrockConfig{
			Region:          pc.Region,
			AccessKeyID:     pc.AccessKeyID,
			SecretAccessKey: pc.SecretAccessKey,
			SessionToken:    pc.SessionToken,
			DefaultModel:    pc.DefaultModel,
		})
	default:
		return nil, fmt.Errorf("unknown provider kind %q", pc.Kind)
	}
}

// toAgentRunConfig converts the YAML-facing config.RunConfig into
// agent.RunConfig, applying agent.DefaultRunConfig for any zero
// command timeout.
func toAgentRunConfig(c config.RunConfig) agent.RunConfig {
	timeout := time.Duration(c.CommandTimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = agent.DefaultRunConfig().CommandTimeout
	}
	return agent.RunConfig{
		Enabled:             c.Enabled,
		MaxSteps:            c.MaxSteps,
		CommandTimeout:      timeout,
		AutoExecuteSafe:     c.AutoExecuteSafe,
		AutoExecuteModerate: c.AutoExecuteModerate,
		StrictMode:          c.StrictMode,
		ReflectionEvery:     c.ReflectionEvery,
		StrategyCooldown:    c.StrategyCooldown,
	}
}
