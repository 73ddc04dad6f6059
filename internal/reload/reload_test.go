package reload

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tillerhq/tiller/internal/certify"
	"github.com/tillerhq/tiller/internal/config"
	"github.com/tillerhq/tiller/internal/gateway"
)

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func newTestReloader(t *testing.T, path string) (*Reloader, *gateway.Gateway) {
	t.Helper()

	cfg, hash, err := config.LoadWithHash(path)
	if err != nil {
		t.Fatalf("load active config: %v", err)
	}
	gw := gateway.New(cfg, hash, gateway.Options{})

	suite, err := certify.LoadSuite("core")
	if err != nil {
		t.Fatalf("LoadSuite: %v", err)
	}
	base := certify.NewBaseline(certify.Run(cfg, hash, suite))

	r, err := New(gw, path, suite, base)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r, gw
}

func TestApplyCertifiedCandidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "governance.yaml")
	writeConfig(t, path, "limits:\n  max_cost_cents: 10000\n")

	r, gw := newTestReloader(t, path)
	before := gw.PolicyHash()

	// Raising a limit does not weaken any certified behavior.
	writeConfig(t, path, "limits:\n  max_cost_cents: 20000\n")
	if err := r.Apply(); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if gw.PolicyHash() == before {
		t.Error("policy hash unchanged after apply")
	}
	if gw.Config().Limits.MaxCostCents != 20000 {
		t.Errorf("limit = %d, want 20000", gw.Config().Limits.MaxCostCents)
	}
}

func TestApplyRefusesRegression(t *testing.T) {
	path := filepath.Join(t.TempDir(), "governance.yaml")
	writeConfig(t, path, "limits:\n  max_cost_cents: 10000\n")

	r, gw := newTestReloader(t, path)
	before := gw.PolicyHash()

	// Reclassifying an irreversible action as reversible fails the suite.
	writeConfig(t, path, "actions:\n  campaign.send:\n    impact: reversible\n    scope: local\n")
	if err := r.Apply(); err == nil {
		t.Fatal("regressive candidate was applied")
	}
	if gw.PolicyHash() != before {
		t.Error("active policy changed despite refusal")
	}
}

func TestApplyRefusesInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "governance.yaml")
	writeConfig(t, path, "limits:\n  max_cost_cents: 10000\n")

	r, gw := newTestReloader(t, path)
	before := gw.PolicyHash()

	writeConfig(t, path, "limits: [broken")
	if err := r.Apply(); err == nil {
		t.Fatal("invalid candidate was applied")
	}
	if gw.PolicyHash() != before {
		t.Error("active policy changed despite refusal")
	}
}
