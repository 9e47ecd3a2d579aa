// Package config loads agentcore.yaml: LLM provider credentials, the
// agent's runtime RunConfig knobs, SSH connection profiles, and
// compaction/sweep tuning. Grounded on the teacher's
// internal/config/loader.go $include-resolving, env-expanding loader,
// trimmed to this module's needs (see SPEC_FULL.md §2 "Configuration").
package config

import (
	"fmt"
	"time"
)

// Config is the top-level shape of agentcore.yaml.
type Config struct {
	Version int `yaml:"version"`

	// LLM selects and configures the C7 provider backends.
	LLM LLMConfig `yaml:"llm"`

	// Run is the agent's mutable runtime configuration (spec.md §6),
	// loaded once at startup; Watch can hand a reloaded copy to a
	// callback.
	Run RunConfig `yaml:"run"`

	// Hosts lists named SSH connection profiles the run/doctor/sessions
	// CLI subcommands can target by name.
	Hosts map[string]SSHProfile `yaml:"hosts"`

	// Compaction tunes the C8 memory-compression budget.
	Compaction CompactionConfig `yaml:"compaction"`

	// Sweep tunes the C4 tracker's background idle-session sweep.
	Sweep SweepConfig `yaml:"sweep"`

	// Logging configures the ambient slog handler.
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig selects the default provider and holds one ProviderConfig
// per backend kind.
type LLMConfig struct {
	DefaultProvider string                    `yaml:"default_provider"`
	Providers       map[string]ProviderConfig `yaml:"providers"`
}

// ProviderConfig is one C7 backend's credentials/model/base-URL,
// shaped to construct whichever of providers.AnthropicConfig,
// NewOpenAIProvider's args, or providers.BedrockConfig its Kind
// selects (SPEC_FULL.md §5 "ProviderConfig").
type ProviderConfig struct {
	// Kind is one of "anthropic", "openai", "bedrock".
	Kind string `yaml:"kind"`

	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	DefaultModel string `yaml:"default_model"`

	// Bedrock-specific; ignored by the other two kinds.
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`

	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// RunConfig mirrors agent.RunConfig's YAML-facing shape (spec.md §6).
type RunConfig struct {
	Enabled             bool          `yaml:"enabled"`
	MaxSteps            int           `yaml:"max_steps"`
	CommandTimeoutMS    int           `yaml:"command_timeout_ms"`
	AutoExecuteSafe     bool          `yaml:"auto_execute_safe"`
	AutoExecuteModerate bool          `yaml:"auto_execute_moderate"`
	StrictMode          bool          `yaml:"strict_mode"`
	ReflectionEvery     int           `yaml:"reflection_every"`
	StrategyCooldown    time.Duration `yaml:"strategy_cooldown"`
}

// SSHProfile is one named remote host connection (spec.md §3
// "HostProfile" construction input, SPEC_FULL.md §5 "SSHProfile").
type SSHProfile struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	User string `yaml:"user"`

	// Auth is either a private key path (PrivateKeyPath) or, when
	// empty, falls back to the local ssh-agent.
	PrivateKeyPath string `yaml:"private_key_path"`
	Passphrase     string `yaml:"passphrase"`

	// JumpHost names another entry in Config.Hosts to dial through
	// first, per spec §6's forward-out jump-host pattern.
	JumpHost string `yaml:"jump_host"`

	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// CompactionConfig tunes C8's memory-compression budget (spec.md
// §4.8.1), overriding agent.DefaultContextLength per provider/model.
type CompactionConfig struct {
	ContextLength int `yaml:"context_length"`
}

// SweepConfig holds tuning for the C4 tracker's robfig/cron/v3
// background sweep (SPEC_FULL.md §6 "C4 Terminal State Tracker — sweep
// scheduling"). Default fills in its values, but no code reads this
// section: termstate.NewSweeper always runs on DefaultSweepSchedule with
// the idle TTL passed to it, and nothing passes ReprobeSchedule to
// Sweeper.AddHostProbe.
type SweepConfig struct {
	// Schedule is a cron expression; defaults to "@every 30s".
	Schedule string `yaml:"schedule"`

	// IdleTTL is how long a session may sit unused before the sweep
	// prunes it.
	IdleTTL time.Duration `yaml:"idle_ttl"`

	// ReprobeSchedule is a cron expression for re-running the host
	// probe to keep HostProfile.InstalledTools current.
	ReprobeSchedule string `yaml:"reprobe_schedule"`
}

// LoggingConfig configures the ambient structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "text"
}

// Default returns the zero-config defaults named across SPEC_FULL.md
// and spec.md §6.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		LLM:     LLMConfig{DefaultProvider: "anthropic"},
		Run: RunConfig{
			Enabled:             true,
			MaxSteps:            0,
			CommandTimeoutMS:    30_000,
			AutoExecuteSafe:     true,
			AutoExecuteModerate: true,
			StrictMode:          false,
			ReflectionEvery:     10,
			StrategyCooldown:    30 * time.Second,
		},
		Compaction: CompactionConfig{ContextLength: 32000},
		Sweep:      SweepConfig{Schedule: "@every 30s", IdleTTL: 30 * time.Minute},
		Logging:    LoggingConfig{Level: "info", Format: "json"},
	}
}

// Validate checks cross-field invariants Load can't catch via strict
// YAML decoding alone.
func (c *Config) Validate() error {
	if err := ValidateVersion(c.Version); err != nil {
		return err
	}
	if c.LLM.DefaultProvider != "" {
		if _, ok := c.LLM.Providers[c.LLM.DefaultProvider]; !ok {
			return fmt.Errorf("config: default_provider %q has no matching llm.providers entry", c.LLM.DefaultProvider)
		}
	}
	for name, profile := range c.Hosts {
		if profile.JumpHost == name {
			return fmt.Errorf("config: host %q cannot be its own jump_host", name)
		}
		if profile.JumpHost != "" {
			if _, ok := c.Hosts[profile.JumpHost]; !ok {
				return fmt.Errorf("config: host %q references unknown jump_host %q", name, profile.JumpHost)
			}
		}
	}
	return nil
}
