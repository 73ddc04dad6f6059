package model

import "testing"

func TestActionSpecImpact(t *testing.T) {
	tests := []struct {
		level int
		want  ImpactLevel
	}{
		{0, ImpactReversible},
		{1, ImpactReversible},
		{2, ImpactDifficult},
		{3, ImpactDifficult},
		{4, ImpactIrreversible},
		{7, ImpactIrreversible},
	}
	for _, tt := range tests {
		got := ActionSpec{IrreversibilityLevel: tt.level}.Impact()
		if got != tt.want {
			t.Errorf("level %d: got %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestTierAtLeast(t *testing.T) {
	if !TierExecute.AtLeast(TierSuggest) {
		t.Error("execute should satisfy suggest")
	}
	if !TierSuggest.AtLeast(TierSuggest) {
		t.Error("suggest should satisfy itself")
	}
	if TierObserve.AtLeast(TierSuggest) {
		t.Error("observe should not satisfy suggest")
	}
}

func TestApprovalFromRole(t *testing.T) {
	tests := []struct {
		name string
		a    Approval
		role ApproverRole
		want bool
	}{
		{"absent", Approval{}, RoleHuman, false},
		{"matching role", Approval{Granted: true, Role: RoleHuman}, RoleHuman, true},
		{"steward satisfies any", Approval{Granted: true, Role: RoleSteward}, RoleHuman, true},
		{"builder does not satisfy steward", Approval{Granted: true, Role: RoleBuilder}, RoleSteward, false},
		{"granted flag required", Approval{Role: RoleSteward}, RoleSteward, false},
	}
	for _, tt := range tests {
		if got := tt.a.FromRole(tt.role); got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestChargeID(t *testing.T) {
	c := RuntimeContext{Source: "planner", TaskID: "t-42"}
	if got := c.ChargeID(); got != "planner:t-42" {
		t.Errorf("derived charge id = %q", got)
	}

	c = c.WithEconomics(EconomicAttribution{ChargeID: "explicit"})
	if got := c.ChargeID(); got != "explicit" {
		t.Errorf("explicit charge id = %q", got)
	}
}

func TestWithEconomicsDoesNotMutate(t *testing.T) {
	base := RuntimeContext{Source: "s", TaskID: "t"}
	_ = base.WithEconomics(EconomicAttribution{CostUnits: 9})
	if base.Economics.CostUnits != 0 {
		t.Error("receiver was mutated")
	}

	_ = base.WithApproval(Approval{Granted: true})
	if base.Approval.Granted {
		t.Error("receiver was mutated by WithApproval")
	}
}

func TestFailureRetryable(t *testing.T) {
	retryable := []FailureType{FailureTimeout, FailureToolRuntime}
	for _, f := range retryable {
		if !f.Retryable() {
			t.Errorf("%q should be retryable", f)
		}
	}
	terminal := []FailureType{FailureSchemaValidation, FailurePermissionDenied, FailurePolicyBlocked, FailureBudgetExceeded}
	for _, f := range terminal {
		if f.Retryable() {
			t.Errorf("%q should not be retryable", f)
		}
	}
}

func TestStatusPermits(t *testing.T) {
	if !StatusAllow.Permits() {
		t.Error("allow should permit")
	}
	for _, s := range []Status{StatusBlock, StatusSafeHold, StatusRequireApproval, StatusDefer} {
		if s.Permits() {
			t.Errorf("%q should not permit", s)
		}
	}
}
