package econ

import (
	"testing"
	"time"

	"github.com/tillerhq/tiller/internal/model"
)

func testGate(limit int64) *Gate {
	cfg := Config{
		Roles: map[string]RolePolicy{
			"outreach": {Role: "outreach", AllowedCategories: []model.CostCategory{"io", "compute"}},
			"admin":    {Role: "admin", AllowedCategories: []model.CostCategory{"*"}},
		},
		AgentRoles: map[string]string{
			"agent-1": "outreach",
			"agent-2": "admin",
		},
		Budget: RollingConfig{LimitUnits: limit},
	}
	return NewGate(cfg, NewMemStore())
}

func ctxFor(agent, chargeID string, units int64, category model.CostCategory) model.RuntimeContext {
	return model.RuntimeContext{
		AgentID: agent,
		Source:  "test",
		TaskID:  chargeID,
		Economics: model.EconomicAttribution{
			CostUnits: units,
			Category:  category,
			ChargeID:  chargeID,
		},
	}
}

func TestChargeIsIdempotent(t *testing.T) {
	g := testGate(1000)

	d, err := g.Enforce("tenant-a", ctxFor("agent-1", "c1", 40, "io"), model.InitiatorAgent)
	if err != nil {
		t.Fatalf("Enforce: %v", err)
	}
	if !d.Allowed || d.RemainingUnits != 960 {
		t.Fatalf("first charge: %+v, want allow with 960 remaining", d)
	}
	if d.Replayed {
		t.Error("first charge marked as replay")
	}

	// Same charge id again: same record back, no further deduction.
	for i := 0; i < 3; i++ {
		d, err = g.Enforce("tenant-a", ctxFor("agent-1", "c1", 40, "io"), model.InitiatorAgent)
		if err != nil {
			t.Fatalf("replay %d: %v", i, err)
		}
		if !d.Allowed || !d.Replayed || d.RemainingUnits != 960 {
			t.Fatalf("replay %d: %+v, want replayed allow with 960 remaining", i, d)
		}
	}
	if got := g.Budget().Remaining("tenant-a"); got != 960 {
		t.Errorf("budget remaining = %d, want 960", got)
	}

	// A new charge id consumes again.
	d, _ = g.Enforce("tenant-a", ctxFor("agent-1", "c2", 40, "io"), model.InitiatorAgent)
	if !d.Allowed || d.RemainingUnits != 920 {
		t.Errorf("second charge: %+v, want allow with 920 remaining", d)
	}
}

func TestBlockedRetryRequiresHuman(t *testing.T) {
	g := testGate(1000)

	d, err := g.Enforce("tenant-a", ctxFor("ghost", "c1", 10, "io"), model.InitiatorAgent)
	if err != nil {
		t.Fatalf("Enforce: %v", err)
	}
	if d.Allowed || d.ReasonCode != model.ReasonRolePolicyMissing {
		t.Fatalf("unknown agent: %+v", d)
	}
	if !d.RequiresReview {
		t.Error("missing role policy should flag human review")
	}

	// Agent retry of a blocked decision gets the retry reason, not a re-run.
	d, _ = g.Enforce("tenant-a", ctxFor("ghost", "c1", 10, "io"), model.InitiatorAgent)
	if d.Allowed || d.ReasonCode != model.ReasonRetryNeedsHuman {
		t.Errorf("agent retry: %+v, want economic_retry_requires_human", d)
	}

	// Human retry replays the stored record as-is; still blocked, original reason.
	d, _ = g.Enforce("tenant-a", ctxFor("ghost", "c1", 10, "io"), model.InitiatorHuman)
	if d.Allowed || !d.Replayed || d.ReasonCode != model.ReasonRolePolicyMissing {
		t.Errorf("human retry: %+v, want replayed original block", d)
	}
}

func TestCategoryDenied(t *testing.T) {
	g := testGate(1000)

	d, _ := g.Enforce("tenant-a", ctxFor("agent-1", "c1", 10, "external"), model.InitiatorAgent)
	if d.Allowed || d.ReasonCode != model.ReasonCategoryDenied {
		t.Errorf("got %+v, want category denial", d)
	}
	// Denied decisions never consume budget.
	if got := g.Budget().Remaining("tenant-a"); got != 1000 {
		t.Errorf("remaining = %d, want untouched 1000", got)
	}
}

func TestWildcardCategory(t *testing.T) {
	g := testGate(1000)

	d, _ := g.Enforce("tenant-a", ctxFor("agent-2", "c1", 10, "external"), model.InitiatorAgent)
	if !d.Allowed {
		t.Errorf("wildcard role denied: %+v", d)
	}
}

func TestBudgetExhausted(t *testing.T) {
	g := testGate(100)

	d, _ := g.Enforce("tenant-a", ctxFor("agent-1", "c1", 80, "io"), model.InitiatorAgent)
	if !d.Allowed {
		t.Fatalf("first charge blocked: %+v", d)
	}

	d, _ = g.Enforce("tenant-a", ctxFor("agent-1", "c2", 40, "io"), model.InitiatorAgent)
	if d.Allowed || d.ReasonCode != model.ReasonUnitBudgetExhausted {
		t.Fatalf("over-budget charge: %+v", d)
	}
	if d.RemainingUnits != 20 {
		t.Errorf("remaining = %d, want unchanged 20", d.RemainingUnits)
	}

	// A charge that fits the remaining headroom still goes through.
	d, _ = g.Enforce("tenant-a", ctxFor("agent-1", "c3", 20, "io"), model.InitiatorAgent)
	if !d.Allowed || d.RemainingUnits != 0 {
		t.Errorf("exact-fit charge: %+v", d)
	}
}

func TestBudgetsAreIdentityScoped(t *testing.T) {
	g := testGate(100)

	g.Enforce("tenant-a", ctxFor("agent-1", "c1", 100, "io"), model.InitiatorAgent)

	d, _ := g.Enforce("tenant-b", ctxFor("agent-1", "c1", 100, "io"), model.InitiatorAgent)
	if !d.Allowed {
		t.Errorf("tenant-b blocked by tenant-a's spend: %+v", d)
	}
}

func TestRollingWindowExpiry(t *testing.T) {
	b := NewRollingBudget(RollingConfig{LimitUnits: 100, Window: time.Hour})

	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return clock }

	if _, ok := b.Consume("tenant-a", 100); !ok {
		t.Fatal("initial consume refused")
	}
	if _, ok := b.Consume("tenant-a", 1); ok {
		t.Fatal("over-limit consume accepted")
	}

	// Inside the window the spend still counts.
	clock = clock.Add(30 * time.Minute)
	if got := b.Remaining("tenant-a"); got != 0 {
		t.Errorf("remaining at +30m = %d, want 0", got)
	}

	// Past the window it ages out.
	clock = clock.Add(31 * time.Minute)
	if got := b.Remaining("tenant-a"); got != 100 {
		t.Errorf("remaining at +61m = %d, want 100", got)
	}
	if _, ok := b.Consume("tenant-a", 100); !ok {
		t.Error("consume after expiry refused")
	}
}

func TestZeroLimitIsUnlimited(t *testing.T) {
	b := NewRollingBudget(RollingConfig{})
	for i := 0; i < 10; i++ {
		if _, ok := b.Consume("tenant-a", 1 << 30); !ok {
			t.Fatal("unlimited budget refused a consume")
		}
	}
	if got := b.Remaining("tenant-a"); got != 0 {
		t.Errorf("unlimited remaining = %d, want sentinel 0", got)
	}
}
