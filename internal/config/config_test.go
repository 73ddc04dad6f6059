package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tillerhq/tiller/internal/model"
	"github.com/tillerhq/tiller/internal/steward"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "governance.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.yaml")

	cfg, hash, err := LoadWithHash(path)
	if err != nil {
		t.Fatalf("LoadWithHash: %v", err)
	}
	if cfg.Limits.MaxCostCents != 10_000 {
		t.Errorf("limits = %+v, want defaults", cfg.Limits)
	}
	// SHA-256 of empty input.
	if hash != "sha256:e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Errorf("hash = %q", hash)
	}
}

func TestLoadOverridesOnlySpecifiedFields(t *testing.T) {
	path := writeConfig(t, `
limits:
  max_cost_cents: 500
agents:
  agent-1:
    role: outreach
    domains: [sales]
    max_tier: execute
`)

	cfg, hash, err := LoadWithHash(path)
	if err != nil {
		t.Fatalf("LoadWithHash: %v", err)
	}
	if cfg.Limits.MaxCostCents != 500 {
		t.Errorf("max_cost_cents = %d", cfg.Limits.MaxCostCents)
	}
	// Unspecified fields keep their defaults.
	if cfg.Budget.LimitUnits != 1000 {
		t.Errorf("unit budget = %d, want default 1000", cfg.Budget.LimitUnits)
	}
	if cfg.Thresholds != steward.DefaultThresholds() {
		t.Errorf("thresholds = %+v", cfg.Thresholds)
	}
	if !cfg.IsRegistered("agent-1") || cfg.IsRegistered("ghost") {
		t.Error("agent directory wrong")
	}
	if hash == "" {
		t.Error("no hash for existing file")
	}
}

func TestHashTracksContent(t *testing.T) {
	p1 := writeConfig(t, "mock_mode: true\n")
	p2 := writeConfig(t, "mock_mode: false\n")

	_, h1, err := LoadWithHash(p1)
	if err != nil {
		t.Fatalf("LoadWithHash: %v", err)
	}
	_, h2, err := LoadWithHash(p2)
	if err != nil {
		t.Fatalf("LoadWithHash: %v", err)
	}
	if h1 == h2 {
		t.Error("different files hashed identically")
	}
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	path := writeConfig(t, "limits: [not a map\n")
	if _, err := Load(path); err == nil {
		t.Error("invalid YAML accepted")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{"defaults valid", func(c *Config) {}, true},
		{"agent without role", func(c *Config) {
			c.Agents["a"] = &AgentProfile{}
		}, false},
		{"agent with unknown tier", func(c *Config) {
			c.Agents["a"] = &AgentProfile{Role: "outreach", MaxTier: "root"}
		}, false},
		{"action with unknown impact", func(c *Config) {
			c.Actions["x.y"] = steward.Classification{Impact: "mild"}
		}, false},
		{"drift floor out of range", func(c *Config) {
			c.Thresholds.DriftLaunchMin = 1.5
		}, false},
	}
	for _, tt := range tests {
		cfg := Default()
		tt.mutate(cfg)
		err := cfg.Validate()
		if (err == nil) != tt.ok {
			t.Errorf("%s: err = %v, want ok=%v", tt.name, err, tt.ok)
		}
	}
}

func TestActionTableOverride(t *testing.T) {
	cfg := Default()
	cfg.Actions = map[string]steward.Classification{
		"campaign.send": {Impact: model.ImpactReversible, Scope: model.ScopeLocal},
		"custom.new":    {Impact: model.ImpactDifficult, Scope: model.ScopeCross},
	}

	table := cfg.ActionTable()
	if c := table.Classify("campaign.send"); c.Impact != model.ImpactReversible {
		t.Errorf("override not applied: %+v", c)
	}
	if c := table.Classify("custom.new"); c.Impact != model.ImpactDifficult {
		t.Errorf("extension not applied: %+v", c)
	}
	// Built-ins survive the merge.
	if c := table.Classify("contact.delete"); c.Impact != model.ImpactIrreversible {
		t.Errorf("built-in lost: %+v", c)
	}
	// Default() itself is untouched.
	if c := Default().ActionTable().Classify("campaign.send"); c.Impact != model.ImpactIrreversible {
		t.Errorf("Default mutated: %+v", c)
	}
}

func TestEconConfigMirrorsAgentDirectory(t *testing.T) {
	cfg := Default()
	cfg.Agents["agent-1"] = &AgentProfile{Role: "outreach"}

	ec := cfg.EconConfig()
	if ec.AgentRoles["agent-1"] != "outreach" {
		t.Errorf("agent roles = %v", ec.AgentRoles)
	}
	if ec.Budget.LimitUnits != cfg.Budget.LimitUnits {
		t.Error("budget not carried over")
	}
}
