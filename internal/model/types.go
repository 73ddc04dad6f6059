package model

import (
	"time"
)

// ImpactLevel classifies an action's reversibility.
type ImpactLevel string

const (
	ImpactReversible   ImpactLevel = "reversible"
	ImpactDifficult    ImpactLevel = "difficult_to_reverse"
	ImpactIrreversible ImpactLevel = "irreversible"
)

// ImpactRank maps impact to a comparable integer for monotonic escalation.
var ImpactRank = map[ImpactLevel]int{
	ImpactReversible:   0,
	ImpactDifficult:    1,
	ImpactIrreversible: 2,
}

// Valid reports whether the impact level is one of the closed set.
func (i ImpactLevel) Valid() bool {
	_, ok := ImpactRank[i]
	return ok
}

// PermissionTier is the capability level a caller holds or requests.
type PermissionTier string

const (
	TierObserve PermissionTier = "observe"
	TierSuggest PermissionTier = "suggest"
	TierExecute PermissionTier = "execute"
)

// TierRank maps permission tiers to comparable integers.
var TierRank = map[PermissionTier]int{
	TierObserve: 0,
	TierSuggest: 1,
	TierExecute: 2,
}

// AtLeast reports whether t grants at minimum the capability of min.
func (t PermissionTier) AtLeast(min PermissionTier) bool {
	return TierRank[t] >= TierRank[min]
}

// Scope distinguishes actions confined to the caller's own tenancy from
// actions that reach across tenant or system boundaries.
type Scope string

const (
	ScopeLocal Scope = "local"
	ScopeCross Scope = "cross"
)

// ReleaseGate is the coarse authorization tier derived from impact and scope.
type ReleaseGate string

const (
	GateA ReleaseGate = "GATE_A" // local, reversible
	GateB ReleaseGate = "GATE_B" // cross-scope
	GateC ReleaseGate = "GATE_C" // irreversible
)

// Status is a governance gate outcome.
type Status string

const (
	StatusAllow           Status = "allow"
	StatusBlock           Status = "block"
	StatusSafeHold        Status = "safe_hold"
	StatusRequireApproval Status = "require_approval"
	StatusDefer           Status = "defer"
)

// Permits reports whether the status lets the action proceed now.
func (s Status) Permits() bool {
	return s == StatusAllow
}

// FailureType classifies a failed tool invocation.
type FailureType string

const (
	FailureSchemaValidation FailureType = "schema_validation_error"
	FailurePermissionDenied FailureType = "permission_denied"
	FailurePolicyBlocked    FailureType = "policy_blocked"
	FailureBudgetExceeded   FailureType = "budget_exceeded"
	FailureTimeout          FailureType = "timeout"
	FailureToolRuntime      FailureType = "tool_runtime_error"
)

// Retryable reports whether the caller's retry policy may re-attempt the
// call without a changed context.
func (f FailureType) Retryable() bool {
	switch f {
	case FailureTimeout, FailureToolRuntime:
		return true
	default:
		return false
	}
}

// Initiator identifies who asked for the decision.
type Initiator string

const (
	InitiatorHuman  Initiator = "human"
	InitiatorAgent  Initiator = "agent"
	InitiatorSystem Initiator = "system"
)

// IsHuman reports whether the initiator is a person.
func (i Initiator) IsHuman() bool { return i == InitiatorHuman }

// ApproverRole is the role a human approval was granted under.
type ApproverRole string

const (
	RoleHuman   ApproverRole = "human"
	RoleSteward ApproverRole = "steward"
	RoleBuilder ApproverRole = "builder"
)

// Approval records a human sign-off attached to a decision context.
// The zero value means no approval is present.
type Approval struct {
	Granted bool         `json:"granted"`
	Role    ApproverRole `json:"role,omitempty"`
	By      string       `json:"by,omitempty"`
}

// FromRole reports whether the approval is present and was granted by the
// given role (or by a steward, which satisfies any role requirement).
func (a Approval) FromRole(role ApproverRole) bool {
	if !a.Granted {
		return false
	}
	return a.Role == role || a.Role == RoleSteward
}

// CostCategory buckets billable work for role policies ("io", "compute",
// "external", ...). Free-form; role policies hold the closed set.
type CostCategory string

// Reason codes carried on blocked decisions. Stable and machine-readable;
// callers render messages from these without the core knowing presentation.
const (
	ReasonTierInsufficient    = "permission_tier_insufficient"
	ReasonApprovalRequired    = "human_approval_required"
	ReasonBudgetCostCents     = "budget_cost_cents_exceeded"
	ReasonBudgetTokens        = "budget_tokens_exceeded"
	ReasonBudgetSideEffects   = "budget_side_effects_exceeded"
	ReasonRolePolicyMissing   = "economic_role_policy_missing"
	ReasonCategoryDenied      = "economic_category_denied"
	ReasonUnitBudgetExhausted = "economic_budget_exhausted"
	ReasonRetryNeedsHuman     = "economic_retry_requires_human"
	ReasonImpactMismatch      = "impact_mismatch"
	ReasonMockMode            = "mock_mode_active"
	ReasonAutoExecute         = "auto_execute_requested"
	ReasonApprovalMissing     = "human_approval_missing"
	ReasonRationaleMissing    = "rationale_missing"
	ReasonCoolingOffMissing   = "cooling_off_missing"
	ReasonTimeDelayPending    = "time_delay_pending"
	ReasonDriftBelowThreshold = "drift_below_threshold"
	ReasonStewardApproval     = "steward_approval_missing"
	ReasonContextMissing      = "governance_context_missing"
)

// ActionSpec is one proposed unit of work. Immutable once created; it
// carries no identity beyond the action id.
type ActionSpec struct {
	ID                   string         `json:"id"`
	Type                 string         `json:"type"`
	Params               map[string]any `json:"params,omitempty"`
	IrreversibilityLevel int            `json:"irreversibility_level"` // 0..4
	RequiresConfirmation bool           `json:"requires_confirmation"`
	Cooldown             time.Duration  `json:"cooldown"`
}

// Impact maps the numeric irreversibility level onto the impact taxonomy:
// 0-1 reversible, 2-3 difficult to reverse, 4 irreversible.
func (a ActionSpec) Impact() ImpactLevel {
	switch {
	case a.IrreversibilityLevel >= 4:
		return ImpactIrreversible
	case a.IrreversibilityLevel >= 2:
		return ImpactDifficult
	default:
		return ImpactReversible
	}
}

// EconomicAttribution is the derived billing view of one decision.
type EconomicAttribution struct {
	CostUnits int64        `json:"cost_units"`
	Category  CostCategory `json:"category"`
	ChargeID  string       `json:"charge_id,omitempty"`
}

// RuntimeContext is the per-decision context handed to the gates.
// Constructed fresh per call and never mutated after being passed in;
// gates return enriched copies.
type RuntimeContext struct {
	AgentID      string `json:"agent_id"`
	Domain       string `json:"domain"`
	DecisionType string `json:"decision_type"`
	Source       string `json:"source,omitempty"`
	TaskID       string `json:"task_id,omitempty"`

	PermissionTier PermissionTier `json:"permission_tier"`
	Impact         ImpactLevel    `json:"impact"`
	Scope          Scope          `json:"scope,omitempty"`

	EstimatedCostCents int64 `json:"estimated_cost_cents"`
	EstimatedTokens    int64 `json:"estimated_tokens"`
	SideEffects        int64 `json:"side_effects"`

	Approval    Approval `json:"approval"`
	Rationale   string   `json:"rationale,omitempty"`
	Exploration bool     `json:"exploration,omitempty"`
	Novelty     float64  `json:"novelty,omitempty"`

	AutoExecute bool          `json:"auto_execute,omitempty"`
	CoolingOff  time.Duration `json:"cooling_off,omitempty"`
	NotBefore   time.Time     `json:"not_before,omitzero"`
	DriftScore  float64       `json:"drift_score"`

	Economics EconomicAttribution `json:"economics"`
}

// ChargeID returns the deduplication key for economic decisions.
// Defaults to "source:taskID"; an explicit attribution wins.
func (c RuntimeContext) ChargeID() string {
	if c.Economics.ChargeID != "" {
		return c.Economics.ChargeID
	}
	return c.Source + ":" + c.TaskID
}

// WithEconomics returns a copy of the context carrying the given
// attribution. The receiver is not modified.
func (c RuntimeContext) WithEconomics(e EconomicAttribution) RuntimeContext {
	c.Economics = e
	return c
}

// WithApproval returns a copy of the context carrying the given approval.
func (c RuntimeContext) WithApproval(a Approval) RuntimeContext {
	c.Approval = a
	return c
}
