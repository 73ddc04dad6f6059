// Package safety implements the first gate in the governance pipeline:
// permission tier, impact, and projected budget checks for one proposed
// action. The gate is a pure function over its inputs plus the budget
// tracker's current totals — it has no side effects of its own.
package safety

import (
	"fmt"

	"github.com/tillerhq/tiller/internal/budget"
	"github.com/tillerhq/tiller/internal/model"
)

// Request carries the per-action inputs to the gate.
type Request struct {
	PermissionTier  model.PermissionTier
	Impact          model.ImpactLevel
	EstimatedCost   int64 // cents
	EstimatedTokens int64
	SideEffects     int64
	Approval        model.Approval
	Live            bool // true when the action would run for real, not just be proposed
}

// Decision is the gate outcome.
type Decision struct {
	Allowed          bool   `json:"allowed"`
	RequiredApproval bool   `json:"required_approval"`
	Reason           string `json:"reason,omitempty"`
	ReasonCode       string `json:"reason_code,omitempty"`
}

// Evaluate checks a single proposed action, in order: (a) permission tier —
// at least "suggest" to propose, "execute" to run live; (b) irreversible
// impact without approval sets RequiredApproval and blocks; (c) projected
// budget usage (current + requested) must not exceed any configured limit.
func Evaluate(req Request, usage budget.State, limits budget.Limits) Decision {
	minTier := model.TierSuggest
	if req.Live {
		minTier = model.TierExecute
	}
	if !req.PermissionTier.AtLeast(minTier) {
		return Decision{
			Reason:     fmt.Sprintf("permission tier %q below required %q", req.PermissionTier, minTier),
			ReasonCode: model.ReasonTierInsufficient,
		}
	}

	if req.Impact == model.ImpactIrreversible && !req.Approval.Granted {
		return Decision{
			RequiredApproval: true,
			Reason:           "irreversible action requires human approval",
			ReasonCode:       model.ReasonApprovalRequired,
		}
	}

	check := budget.Check(usage, req.EstimatedCost, req.EstimatedTokens, req.SideEffects, limits)
	if check.Exceeded {
		return Decision{
			Reason:     check.String(),
			ReasonCode: check.Reason,
		}
	}

	return Decision{Allowed: true}
}
