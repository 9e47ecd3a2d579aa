package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "agentcore.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, `
version: 1
llm:
  default_provider: anthropic
  providers:
    anthropic:
      kind: anthropic
      api_key: sk-test
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Run.CommandTimeoutMS != 30_000 {
		t.Errorf("CommandTimeoutMS = %d, want default 30000", cfg.Run.CommandTimeoutMS)
	}
	if !cfg.Run.AutoExecuteSafe || !cfg.Run.AutoExecuteModerate {
		t.Error("expected auto_execute_safe/moderate to default true")
	}
	if cfg.Compaction.ContextLength != 32000 {
		t.Errorf("ContextLength = %d, want default 32000", cfg.Compaction.ContextLength)
	}
	if cfg.Sweep.Schedule != "@every 30s" {
		t.Errorf("Sweep.Schedule = %q, want @every 30s", cfg.Sweep.Schedule)
	}
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	path := writeTempConfig(t, `
version: 1
llm:
  default_provider: anthropic
  providers:
    anthropic:
      kind: anthropic
      api_key: sk-test
bogus_top_level_key: true
`)

	if _, err := Load(path); err == nil {
		t.Error("expected strict decoding to reject an unknown top-level key")
	}
}

func TestLoad_RejectsMissingDefaultProvider(t *testing.T) {
	path := writeTempConfig(t, `
version: 1
llm:
  default_provider: openai
  providers:
    anthropic:
      kind: anthropic
      api_key: sk-test
`)

	if _, err := Load(path); err == nil {
		t.Error("expected validation error when default_provider has no matching providers entry")
	}
}

func TestLoad_ResolvesInclude(t *testing.T) {
	dir := t.TempDir()
	basePath := filepath.Join(dir, "base.yaml")
	mainPath := filepath.Join(dir, "agentcore.yaml")

	if err := os.WriteFile(basePath, []byte(`
sweep:
  idle_ttl: 45m
`), 0o644); err != nil {
		t.Fatalf("WriteFile base: %v", err)
	}
	if err := os.WriteFile(mainPath, []byte(`
$include: base.yaml
version: 1
llm:
  default_provider: anthropic
  providers:
    anthropic:
      kind: anthropic
      api_key: sk-test
`), 0o644); err != nil {
		t.Fatalf("WriteFile main: %v", err)
	}

	cfg, err := Load(mainPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Sweep.IdleTTL.String() != "45m0s" {
		t.Errorf("Sweep.IdleTTL = %v, want 45m0s from the included file", cfg.Sweep.IdleTTL)
	}
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("AGENTCORE_TEST_API_KEY", "sk-from-env")
	path := writeTempConfig(t, `
version: 1
llm:
  default_provider: anthropic
  providers:
    anthropic:
      kind: anthropic
      api_key: ${AGENTCORE_TEST_API_KEY}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.Providers["anthropic"].APIKey != "sk-from-env" {
		t.Errorf("APIKey = %q, want sk-from-env", cfg.LLM.Providers["anthropic"].APIKey)
	}
}

func TestValidate_RejectsSelfReferentialJumpHost(t *testing.T) {
	cfg := Default()
	cfg.LLM.Providers = map[string]ProviderConfig{"anthropic": {Kind: "anthropic", APIKey: "x"}}
	cfg.Hosts = map[string]SSHProfile{
		"prod": {Host: "prod.example.com", JumpHost: "prod"},
	}

	if err := cfg.Validate(); err == nil {
		t.Error("expected a self-referential jump_host to fail validation")
	}
}

func TestValidate_RejectsUnknownJumpHost(t *testing.T) {
	cfg := Default()
	cfg.LLM.Providers = map[string]ProviderConfig{"anthropic": {Kind: "anthropic", APIKey: "x"}}
	cfg.Hosts = map[string]SSHProfile{
		"prod": {Host: "prod.example.com", JumpHost: "bastion"},
	}

	if err := cfg.Validate(); err == nil {
		t.Error("expected a jump_host referencing an undefined host to fail validation")
	}
}
