package tiller

import (
	"fmt"

	"github.com/tillerhq/tiller/internal/model"
)

// Status is the governance outcome for one action.
type Status string

const (
	Allow           Status = Status(model.StatusAllow)
	Block           Status = Status(model.StatusBlock)
	SafeHold        Status = Status(model.StatusSafeHold)
	RequireApproval Status = Status(model.StatusRequireApproval)
	Defer           Status = Status(model.StatusDefer)
)

// Action describes what an agent intends to do.
type Action struct {
	Agent  string // registered agent id
	Domain string // business domain
	Type   string // action key, e.g. "campaign.send"

	Tier   string // permission tier; empty means "execute"
	Impact string // declared impact; empty means "reversible"

	CostCents   int64
	Tokens      int64
	SideEffects int64

	Units    int64  // billable units for the economic gate
	Category string // cost category; empty means "compute"

	TaskID   string // used to derive the charge id
	ChargeID string // explicit idempotency key; overrides TaskID derivation

	Rationale  string
	DriftScore float64
}

// Result is a governance evaluation outcome.
type Result struct {
	Status              Status
	Reasons             []string
	RequiresHumanReview bool
	ChargeID            string
	PolicyHash          string
}

// Allowed returns true if the decision permits the action.
func (r Result) Allowed() bool {
	return r.Status == Allow
}

// BlockedError is returned when the pipeline holds or blocks an action.
type BlockedError struct {
	Action   Action
	Status   Status
	Reasons  []string
	ChargeID string
}

func (e *BlockedError) Error() string {
	if len(e.Reasons) > 0 {
		return fmt.Sprintf("tiller blocked (%s): %s", e.Status, e.Reasons[0])
	}
	return fmt.Sprintf("tiller blocked (%s)", e.Status)
}

// toRuntimeContext maps an SDK Action to the internal decision context.
func toRuntimeContext(a Action) model.RuntimeContext {
	tier := a.Tier
	if tier == "" {
		tier = string(model.TierExecute)
	}
	impact := a.Impact
	if impact == "" {
		impact = string(model.ImpactReversible)
	}
	category := a.Category
	if category == "" {
		category = "compute"
	}

	return model.RuntimeContext{
		AgentID:      a.Agent,
		Domain:       a.Domain,
		DecisionType: a.Type,
		Source:       "sdk",
		TaskID:       a.TaskID,

		PermissionTier: model.PermissionTier(tier),
		Impact:         model.ImpactLevel(impact),

		EstimatedCostCents: a.CostCents,
		EstimatedTokens:    a.Tokens,
		SideEffects:        a.SideEffects,

		Rationale:  a.Rationale,
		DriftScore: a.DriftScore,

		Economics: model.EconomicAttribution{
			CostUnits: a.Units,
			Category:  model.CostCategory(category),
			ChargeID:  a.ChargeID,
		},
	}
}
