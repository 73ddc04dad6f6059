package safety

import (
	"testing"

	"github.com/tillerhq/tiller/internal/budget"
	"github.com/tillerhq/tiller/internal/model"
)

func TestEvaluate(t *testing.T) {
	limits := budget.Limits{MaxCostCents: 100, MaxTokens: 1000}

	tests := []struct {
		name     string
		req      Request
		usage    budget.State
		allowed  bool
		approval bool
		code     string
	}{
		{
			name:    "suggest tier can propose",
			req:     Request{PermissionTier: model.TierSuggest, Impact: model.ImpactReversible},
			allowed: true,
		},
		{
			name: "observe tier cannot propose",
			req:  Request{PermissionTier: model.TierObserve, Impact: model.ImpactReversible},
			code: model.ReasonTierInsufficient,
		},
		{
			name: "suggest tier cannot run live",
			req:  Request{PermissionTier: model.TierSuggest, Impact: model.ImpactReversible, Live: true},
			code: model.ReasonTierInsufficient,
		},
		{
			name:    "execute tier runs live",
			req:     Request{PermissionTier: model.TierExecute, Impact: model.ImpactReversible, Live: true},
			allowed: true,
		},
		{
			name:     "irreversible without approval",
			req:      Request{PermissionTier: model.TierExecute, Impact: model.ImpactIrreversible},
			approval: true,
			code:     model.ReasonApprovalRequired,
		},
		{
			name: "irreversible with approval",
			req: Request{
				PermissionTier: model.TierExecute,
				Impact:         model.ImpactIrreversible,
				Approval:       model.Approval{Granted: true, Role: model.RoleHuman},
			},
			allowed: true,
		},
		{
			name:  "projected cost over limit",
			req:   Request{PermissionTier: model.TierExecute, Impact: model.ImpactReversible, EstimatedCost: 20},
			usage: budget.State{CostCents: 90},
			code:  model.ReasonBudgetCostCents,
		},
		{
			name:  "projected tokens over limit",
			req:   Request{PermissionTier: model.TierExecute, Impact: model.ImpactReversible, EstimatedTokens: 600},
			usage: budget.State{Tokens: 600},
			code:  model.ReasonBudgetTokens,
		},
		{
			name:    "exactly at the cost limit",
			req:     Request{PermissionTier: model.TierExecute, Impact: model.ImpactReversible, EstimatedCost: 10},
			usage:   budget.State{CostCents: 90},
			allowed: true,
		},
		{
			name: "tier checked before budget",
			req:  Request{PermissionTier: model.TierObserve, EstimatedCost: 500},
			code: model.ReasonTierInsufficient,
		},
		{
			name: "impact checked before budget",
			req:  Request{PermissionTier: model.TierExecute, Impact: model.ImpactIrreversible, EstimatedCost: 500},
			approval: true,
			code:     model.ReasonApprovalRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Evaluate(tt.req, tt.usage, limits)
			if d.Allowed != tt.allowed {
				t.Errorf("allowed = %v, want %v (%+v)", d.Allowed, tt.allowed, d)
			}
			if d.RequiredApproval != tt.approval {
				t.Errorf("required_approval = %v, want %v", d.RequiredApproval, tt.approval)
			}
			if d.ReasonCode != tt.code {
				t.Errorf("reason code = %q, want %q", d.ReasonCode, tt.code)
			}
		})
	}
}

func TestEvaluateUnlimitedBudget(t *testing.T) {
	d := Evaluate(Request{
		PermissionTier:  model.TierExecute,
		Impact:          model.ImpactReversible,
		EstimatedCost:   1 << 40,
		EstimatedTokens: 1 << 40,
	}, budget.State{}, budget.Limits{})
	if !d.Allowed {
		t.Errorf("unlimited budget blocked: %+v", d)
	}
}
