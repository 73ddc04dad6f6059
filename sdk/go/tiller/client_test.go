package tiller

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// testConfig registers agent-1 under the outreach role so SDK decisions
// clear the economic gate.
const testConfig = `
agents:
  agent-1:
    role: outreach
    domains: [sales]
    max_tier: execute
`

func newTestClient(t *testing.T) *Client {
	t.Helper()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "governance.yaml")
	if err := os.WriteFile(cfgPath, []byte(testConfig), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	c, err := New(
		WithIdentity("tenant-a"),
		WithConfig(cfgPath),
		WithApprovalDir(filepath.Join(dir, "pending")),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCheckReversibleAllowed(t *testing.T) {
	c := newTestClient(t)

	res := c.Check(Action{
		Agent:  "agent-1",
		Domain: "sales",
		Type:   "lead.read",
		Units:  1,
		TaskID: "t1",
	})
	if !res.Allowed() {
		t.Errorf("got %+v, want allow", res)
	}
	if res.ChargeID != "sdk:t1" {
		t.Errorf("charge id = %q, want sdk:t1", res.ChargeID)
	}
}

func TestWrapBlocksIrreversible(t *testing.T) {
	c := newTestClient(t)

	called := false
	send := c.Wrap(func(ctx context.Context, a Action) (any, error) {
		called = true
		return "sent", nil
	})

	_, err := send(context.Background(), Action{
		Agent:  "agent-1",
		Domain: "sales",
		Type:   "campaign.send",
		Impact: "irreversible",
		Units:  5,
		Category: "io",
		TaskID: "t2",
	})

	var blocked *BlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("err = %v, want *BlockedError", err)
	}
	if called {
		t.Error("tool ran despite the hold")
	}
	if blocked.Status != RequireApproval {
		t.Errorf("status = %q, want require_approval", blocked.Status)
	}
	if blocked.ChargeID == "" {
		t.Error("blocked error has no charge id")
	}
}

func TestWrapRunsAllowedAndCharges(t *testing.T) {
	c := newTestClient(t)

	read := c.Wrap(func(ctx context.Context, a Action) (any, error) {
		return "ok", nil
	})

	out, err := read(context.Background(), Action{
		Agent:     "agent-1",
		Domain:    "sales",
		Type:      "lead.read",
		CostCents: 10,
		Tokens:    200,
		Units:     1,
		TaskID:    "t3",
	})
	if err != nil {
		t.Fatalf("wrapped call: %v", err)
	}
	if out != "ok" {
		t.Errorf("output = %v", out)
	}

	cost, tokens, _ := c.Usage()
	if cost != 10 || tokens != 200 {
		t.Errorf("usage = (%d, %d), want (10, 200)", cost, tokens)
	}
}

func TestWrapOpensApprovalOnHold(t *testing.T) {
	c := newTestClient(t)

	del := c.Wrap(func(ctx context.Context, a Action) (any, error) {
		return nil, nil
	})

	_, err := del(context.Background(), Action{
		Agent:     "agent-1",
		Domain:    "sales",
		Type:      "contact.delete",
		Impact:    "irreversible",
		Units:     1,
		TaskID:    "t4",
		Rationale: "erasure request",
	})

	var blocked *BlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("err = %v, want *BlockedError", err)
	}

	list, err := c.approvals.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].Key != blocked.ChargeID {
		t.Errorf("approval request not opened for %q: %+v", blocked.ChargeID, list)
	}
}

func TestUnknownAgentBlocked(t *testing.T) {
	c := newTestClient(t)

	res := c.Check(Action{
		Agent:  "ghost",
		Domain: "sales",
		Type:   "lead.read",
		Units:  1,
		TaskID: "t5",
	})
	if res.Allowed() {
		t.Error("unregistered agent was allowed")
	}
	if res.Status != Block {
		t.Errorf("status = %q, want block", res.Status)
	}
}
