package mcp

import (
	"context"
	"fmt"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/tillerhq/tiller/internal/model"
)

// CheckInput defines parameters for the tiller_check tool.
type CheckInput struct {
	Identity     string  `json:"identity" jsonschema:"tenant identity the action runs under"`
	Agent        string  `json:"agent" jsonschema:"registered agent id"`
	Domain       string  `json:"domain" jsonschema:"business domain of the action"`
	DecisionType string  `json:"decision_type" jsonschema:"action key, e.g. campaign.send"`
	Tier         string  `json:"tier" jsonschema:"permission tier (observe/suggest/execute)"`
	Impact       string  `json:"impact" jsonschema:"declared impact (reversible/difficult_to_reverse/irreversible)"`
	CostCents    int64   `json:"cost_cents,omitempty" jsonschema:"estimated cost in cents"`
	Tokens       int64   `json:"tokens,omitempty" jsonschema:"estimated token usage"`
	SideEffects  int64   `json:"side_effects,omitempty" jsonschema:"estimated side-effect count"`
	CostUnits    int64   `json:"cost_units,omitempty" jsonschema:"billable units for the economic gate"`
	Category     string  `json:"category,omitempty" jsonschema:"cost category (io/compute/external)"`
	ChargeID     string  `json:"charge_id,omitempty" jsonschema:"idempotency key; omit to derive from source and task"`
	TaskID       string  `json:"task_id,omitempty" jsonschema:"task id used to derive the charge id"`
	Rationale    string  `json:"rationale,omitempty" jsonschema:"human-readable justification"`
	DriftScore   float64 `json:"drift_score,omitempty" jsonschema:"alignment drift score in [0,1]"`
	Initiator    string  `json:"initiator,omitempty" jsonschema:"who asked (human/agent/system), default agent"`
}

// CheckOutput carries the aggregate governance decision.
type CheckOutput struct {
	Status              string   `json:"status"`
	Allowed             bool     `json:"allowed"`
	Reasons             []string `json:"reasons,omitempty"`
	RequiresHumanReview bool     `json:"requires_human_review"`
	ChargeID            string   `json:"charge_id"`
	PolicyHash          string   `json:"policy_hash"`
}

// ApproveInput defines parameters for the tiller_approve tool.
type ApproveInput struct {
	Key      string `json:"key" jsonschema:"approval key (charge id) from a held decision"`
	Role     string `json:"role,omitempty" jsonschema:"approver role (human/steward), default human"`
	By       string `json:"by" jsonschema:"name of the person approving"`
	Duration string `json:"duration,omitempty" jsonschema:"validity window (e.g. 5m), omit for one-time"`
}

// ApproveOutput confirms the resolution.
type ApproveOutput struct {
	Key      string `json:"key"`
	Status   string `json:"status"`
	Duration string `json:"duration,omitempty"`
}

// DenyInput defines parameters for the tiller_deny tool.
type DenyInput struct {
	Key string `json:"key" jsonschema:"approval key to deny"`
	By  string `json:"by" jsonschema:"name of the person denying"`
}

// DenyOutput confirms the denial.
type DenyOutput struct {
	Key    string `json:"key"`
	Status string `json:"status"`
}

// PendingInput has no parameters.
type PendingInput struct{}

// PendingOutput lists approval requests.
type PendingOutput struct {
	Requests []PendingItem `json:"requests"`
}

// PendingItem describes one approval request.
type PendingItem struct {
	Key        string `json:"key"`
	Status     string `json:"status"`
	Identity   string `json:"identity"`
	ActionType string `json:"action_type"`
	Rationale  string `json:"rationale"`
	CreatedAt  string `json:"created_at"`
}

// LedgerInput defines parameters for the tiller_ledger tool.
type LedgerInput struct {
	Identity string `json:"identity" jsonschema:"identity whose ledger to read"`
	Limit    int    `json:"limit,omitempty" jsonschema:"maximum records to return, newest last"`
}

// LedgerOutput lists ledger records in clock order.
type LedgerOutput struct {
	Identity string       `json:"identity"`
	Clock    uint64       `json:"clock"`
	Records  []LedgerItem `json:"records"`
}

// LedgerItem is one ledger record.
type LedgerItem struct {
	RecordID      string `json:"record_id"`
	Timestamp     string `json:"ts"`
	ActorRole     string `json:"actor_role"`
	ActionClass   string `json:"action_class"`
	HumanApproval bool   `json:"human_approval"`
	Rationale     string `json:"rationale,omitempty"`
}

// BudgetInput defines parameters for the tiller_budget tool.
type BudgetInput struct {
	Identity string `json:"identity" jsonschema:"identity whose usage to report"`
}

// BudgetOutput reports usage against limits.
type BudgetOutput struct {
	Identity       string `json:"identity"`
	CostCents      int64  `json:"cost_cents"`
	Tokens         int64  `json:"tokens"`
	SideEffects    int64  `json:"side_effects"`
	MaxCostCents   int64  `json:"max_cost_cents"`
	MaxTokens      int64  `json:"max_tokens"`
	MaxSideEffects int64  `json:"max_side_effects"`
}

func (s *Server) handleCheck(ctx context.Context, req *mcpsdk.CallToolRequest, input CheckInput) (*mcpsdk.CallToolResult, CheckOutput, error) {
	if input.Identity == "" {
		return nil, CheckOutput{}, fmt.Errorf("identity is required")
	}

	rctx := model.RuntimeContext{
		AgentID:      input.Agent,
		Domain:       input.Domain,
		DecisionType: input.DecisionType,
		Source:       "mcp",
		TaskID:       input.TaskID,

		PermissionTier: model.PermissionTier(input.Tier),
		Impact:         model.ImpactLevel(input.Impact),

		EstimatedCostCents: input.CostCents,
		EstimatedTokens:    input.Tokens,
		SideEffects:        input.SideEffects,

		Rationale:  input.Rationale,
		DriftScore: input.DriftScore,

		Economics: model.EconomicAttribution{
			CostUnits: input.CostUnits,
			Category:  model.CostCategory(input.Category),
			ChargeID:  input.ChargeID,
		},
	}

	// A resolved approval for this charge id rides along automatically.
	if a, err := s.approvals.Grant(rctx.ChargeID()); err == nil && a.Granted {
		rctx = rctx.WithApproval(a)
	}

	initiator := model.InitiatorAgent
	if input.Initiator != "" {
		initiator = model.Initiator(input.Initiator)
	}

	d := s.gw.EnforceRuntimeGovernance(input.Identity, rctx, initiator)

	out := CheckOutput{
		Status:              string(d.Status),
		Allowed:             d.Allowed,
		Reasons:             d.Reasons,
		RequiresHumanReview: d.RequiresHumanReview,
		ChargeID:            rctx.ChargeID(),
		PolicyHash:          d.PolicyHash,
	}

	// Held decisions open an approval request so an operator can resolve
	// them out of band.
	if d.Status == model.StatusRequireApproval || d.Status == model.StatusSafeHold {
		s.approvals.Open(rctx.ChargeID(), input.Identity, input.DecisionType, input.Rationale)
		return &mcpsdk.CallToolResult{IsError: true}, out, nil
	}
	if !d.Allowed {
		return &mcpsdk.CallToolResult{IsError: true}, out, nil
	}
	return nil, out, nil
}

func (s *Server) handleApprove(ctx context.Context, req *mcpsdk.CallToolRequest, input ApproveInput) (*mcpsdk.CallToolResult, ApproveOutput, error) {
	var duration time.Duration
	if input.Duration != "" {
		var err error
		duration, err = time.ParseDuration(input.Duration)
		if err != nil {
			return nil, ApproveOutput{}, fmt.Errorf("invalid duration %q: %w", input.Duration, err)
		}
	}

	role := model.ApproverRole(input.Role)
	if role == "" {
		role = model.RoleHuman
	}
	if err := s.approvals.Approve(input.Key, role, input.By, duration); err != nil {
		return nil, ApproveOutput{}, err
	}

	out := ApproveOutput{Key: input.Key, Status: "approved"}
	if duration > 0 {
		out.Duration = duration.String()
	}
	return nil, out, nil
}

func (s *Server) handleDeny(ctx context.Context, req *mcpsdk.CallToolRequest, input DenyInput) (*mcpsdk.CallToolResult, DenyOutput, error) {
	if err := s.approvals.Deny(input.Key, input.By); err != nil {
		return nil, DenyOutput{}, err
	}
	return nil, DenyOutput{Key: input.Key, Status: "denied"}, nil
}

func (s *Server) handlePending(ctx context.Context, req *mcpsdk.CallToolRequest, input PendingInput) (*mcpsdk.CallToolResult, PendingOutput, error) {
	list, err := s.approvals.List()
	if err != nil {
		return nil, PendingOutput{}, err
	}

	items := make([]PendingItem, len(list))
	for i, r := range list {
		items[i] = PendingItem{
			Key:        r.Key,
			Status:     string(r.Status),
			Identity:   r.Identity,
			ActionType: r.ActionType,
			Rationale:  r.Rationale,
			CreatedAt:  r.CreatedAt.Format(time.RFC3339),
		}
	}
	return nil, PendingOutput{Requests: items}, nil
}

func (s *Server) handleLedger(ctx context.Context, req *mcpsdk.CallToolRequest, input LedgerInput) (*mcpsdk.CallToolResult, LedgerOutput, error) {
	if input.Identity == "" {
		return nil, LedgerOutput{}, fmt.Errorf("identity is required")
	}

	records := s.gw.Ledger(input.Identity)
	if input.Limit > 0 && len(records) > input.Limit {
		records = records[len(records)-input.Limit:]
	}

	items := make([]LedgerItem, len(records))
	for i, r := range records {
		items[i] = LedgerItem{
			RecordID:      r.RecordID,
			Timestamp:     r.Timestamp,
			ActorRole:     string(r.ActorRole),
			ActionClass:   r.ActionClass,
			HumanApproval: r.HumanApproval,
			Rationale:     r.Rationale,
		}
	}

	return nil, LedgerOutput{
		Identity: input.Identity,
		Clock:    s.gw.Book().Clock(input.Identity),
		Records:  items,
	}, nil
}

func (s *Server) handleBudget(ctx context.Context, req *mcpsdk.CallToolRequest, input BudgetInput) (*mcpsdk.CallToolResult, BudgetOutput, error) {
	if input.Identity == "" {
		return nil, BudgetOutput{}, fmt.Errorf("identity is required")
	}

	usage := s.gw.Tracker().Usage(input.Identity)
	limits := s.gw.Tracker().Limits()

	return nil, BudgetOutput{
		Identity:       input.Identity,
		CostCents:      usage.CostCents,
		Tokens:         usage.Tokens,
		SideEffects:    usage.SideEffects,
		MaxCostCents:   limits.MaxCostCents,
		MaxTokens:      limits.MaxTokens,
		MaxSideEffects: limits.MaxSideEffects,
	}, nil
}
