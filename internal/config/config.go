// Package config loads the governance policy file: budget limits, role
// policies, the action impact table, drift thresholds, and the agent
// directory. The loaded file's content hash travels with every recorded
// decision so a trail entry can always be tied to the policy that made it.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/tillerhq/tiller/internal/budget"
	"github.com/tillerhq/tiller/internal/econ"
	"github.com/tillerhq/tiller/internal/model"
	"github.com/tillerhq/tiller/internal/steward"
)

// AgentProfile describes one registered agent.
type AgentProfile struct {
	Role    string               `yaml:"role" json:"role"`
	Domains []string             `yaml:"domains" json:"domains"`
	MaxTier model.PermissionTier `yaml:"max_tier" json:"max_tier"`
}

// Config holds all configurable governance parameters.
type Config struct {
	Limits     budget.Limits                  `yaml:"limits"`
	Roles      map[string]econ.RolePolicy     `yaml:"roles"`
	Budget     econ.RollingConfig             `yaml:"unit_budget"`
	Agents     map[string]*AgentProfile       `yaml:"agents"`
	Actions    map[string]steward.Classification `yaml:"actions"`
	Thresholds steward.Thresholds             `yaml:"thresholds"`
	MockMode   bool                           `yaml:"mock_mode"`
	Cache      CachePolicy                    `yaml:"cache"`
}

// CachePolicy mirrors the cache eligibility knobs.
type CachePolicy struct {
	NoveltyCeiling float64 `yaml:"novelty_ceiling"`
}

// Default returns the built-in governance config.
func Default() *Config {
	return &Config{
		Limits: budget.Limits{
			MaxCostCents:   10_000,
			MaxTokens:      2_000_000,
			MaxSideEffects: 200,
		},
		Roles: map[string]econ.RolePolicy{
			"outreach": {Role: "outreach", AllowedCategories: []model.CostCategory{"io", "compute"}},
			"concierge": {Role: "concierge", AllowedCategories: []model.CostCategory{"compute"}},
			"admin":    {Role: "admin", AllowedCategories: []model.CostCategory{"*"}},
		},
		Budget: econ.RollingConfig{LimitUnits: 1000},
		Agents: map[string]*AgentProfile{},
		Actions: map[string]steward.Classification{},
		Thresholds: steward.DefaultThresholds(),
		Cache:      CachePolicy{NoveltyCeiling: 0.8},
	}
}

// EconConfig derives the economic gate configuration. Agent roles come
// from the agent directory so there is a single source of truth.
func (c *Config) EconConfig() econ.Config {
	agentRoles := make(map[string]string, len(c.Agents))
	for id, p := range c.Agents {
		agentRoles[id] = p.Role
	}
	return econ.Config{
		Roles:      c.Roles,
		AgentRoles: agentRoles,
		Budget:     c.Budget,
	}
}

// ActionTable merges the built-in impact table with configured overrides.
func (c *Config) ActionTable() steward.Table {
	table := steward.DefaultTable()
	for k, v := range c.Actions {
		table[k] = v
	}
	return table
}

// IsRegistered reports whether the agent exists in the directory.
func (c *Config) IsRegistered(agentID string) bool {
	_, ok := c.Agents[agentID]
	return ok
}

// DefaultPath returns the standard governance config location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "tiller", "governance.yaml")
	}
	return filepath.Join(home, ".tiller", "governance.yaml")
}

// Load loads governance configuration from a YAML file.
// Empty path falls back to the default location. Missing file returns
// defaults. Invalid YAML returns an error.
func Load(path string) (*Config, error) {
	cfg, _, err := LoadWithHash(path)
	return cfg, err
}

// LoadWithHash loads governance configuration and returns its SHA-256 hash.
// The hash is computed over the raw YAML bytes on disk. When no file exists
// (defaults used), the hash is the SHA-256 of empty input.
func LoadWithHash(path string) (*Config, string, error) {
	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			h := sha256.Sum256(nil)
			return Default(), "sha256:" + hex.EncodeToString(h[:]), nil
		}
		return nil, "", fmt.Errorf("failed to read governance config: %w", err)
	}

	// Start with defaults; YAML overwrites only specified fields.
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse governance config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}

	h := sha256.Sum256(data)
	return cfg, "sha256:" + hex.EncodeToString(h[:]), nil
}

// Validate rejects configs that would silently weaken enforcement.
func (c *Config) Validate() error {
	for id, p := range c.Agents {
		if p == nil {
			return fmt.Errorf("config: agent %q has no profile", id)
		}
		if p.Role == "" {
			return fmt.Errorf("config: agent %q has no role", id)
		}
		if p.MaxTier != "" {
			if _, ok := model.TierRank[p.MaxTier]; !ok {
				return fmt.Errorf("config: agent %q has unknown tier %q", id, p.MaxTier)
			}
		}
	}
	for key, cl := range c.Actions {
		if !cl.Impact.Valid() {
			return fmt.Errorf("config: action %q has unknown impact %q", key, cl.Impact)
		}
	}
	if c.Thresholds.DriftExecuteMin < 0 || c.Thresholds.DriftExecuteMin > 1 {
		return fmt.Errorf("config: drift_execute_min out of range")
	}
	if c.Thresholds.DriftLaunchMin < 0 || c.Thresholds.DriftLaunchMin > 1 {
		return fmt.Errorf("config: drift_launch_min out of range")
	}
	return nil
}
