// Package steward implements the irreversibility gate and the stewardship
// activation machine. Two state machines cooperate here: per-action
// execution classification (impact level, release gate, SAFE_HOLD
// preconditions) and the longer-lived stewardship activation state that
// revokes builder privileges once a human steward takes over.
package steward

import (
	"fmt"
	"time"

	"github.com/tillerhq/tiller/internal/model"
)

// Classification is one row of the static action table.
type Classification struct {
	Impact model.ImpactLevel `yaml:"impact" json:"impact"`
	Scope  model.Scope       `yaml:"scope" json:"scope"`
}

// Table maps action keys to their required impact classification.
type Table map[string]Classification

// DefaultTable covers the platform's built-in action families. Config may
// extend or override it.
func DefaultTable() Table {
	return Table{
		"lead.read":        {Impact: model.ImpactReversible, Scope: model.ScopeLocal},
		"lead.update":      {Impact: model.ImpactReversible, Scope: model.ScopeLocal},
		"campaign.draft":   {Impact: model.ImpactReversible, Scope: model.ScopeLocal},
		"campaign.send":    {Impact: model.ImpactIrreversible, Scope: model.ScopeCross},
		"sms.send":         {Impact: model.ImpactIrreversible, Scope: model.ScopeCross},
		"email.send":       {Impact: model.ImpactIrreversible, Scope: model.ScopeCross},
		"contact.delete":   {Impact: model.ImpactIrreversible, Scope: model.ScopeLocal},
		"schedule.book":    {Impact: model.ImpactDifficult, Scope: model.ScopeCross},
		"billing.charge":   {Impact: model.ImpactIrreversible, Scope: model.ScopeCross},
		"memory.lookup":    {Impact: model.ImpactReversible, Scope: model.ScopeLocal},
		"memory.write":     {Impact: model.ImpactDifficult, Scope: model.ScopeLocal},
		"agent.handoff":    {Impact: model.ImpactDifficult, Scope: model.ScopeCross},
		"config.publish":   {Impact: model.ImpactDifficult, Scope: model.ScopeCross},
		"workspace.delete": {Impact: model.ImpactIrreversible, Scope: model.ScopeCross},
	}
}

// Classify returns the classification for an action key. Unknown actions
// fail closed: they classify as irreversible and cross-scope.
func (t Table) Classify(actionKey string) Classification {
	if c, ok := t[actionKey]; ok {
		return c
	}
	return Classification{Impact: model.ImpactIrreversible, Scope: model.ScopeCross}
}

// ReleaseGateFor computes the coarse authorization tier from impact and
// scope: irreversible → GATE_C, cross-scope → GATE_B, otherwise GATE_A.
func ReleaseGateFor(impact model.ImpactLevel, scope model.Scope) model.ReleaseGate {
	switch {
	case impact == model.ImpactIrreversible:
		return model.GateC
	case scope == model.ScopeCross:
		return model.GateB
	default:
		return model.GateA
	}
}

// Thresholds hold the drift-score floors for execution and stewardship.
type Thresholds struct {
	DriftExecuteMin float64 `yaml:"drift_execute_min" json:"drift_execute_min"`
	DriftLaunchMin  float64 `yaml:"drift_launch_min" json:"drift_launch_min"`
}

// DefaultThresholds returns the standard drift floors.
func DefaultThresholds() Thresholds {
	return Thresholds{DriftExecuteMin: 0.70, DriftLaunchMin: 0.85}
}

// ExecRequest carries everything the execution classifier inspects for one
// proposed action.
type ExecRequest struct {
	ActionKey   string
	MockMode    bool
	AutoExecute bool
	Approval    model.Approval
	Rationale   string
	CoolingOff  time.Duration
	NotBefore   time.Time // required time delay for non-local scope
	DriftScore  float64
	Now         time.Time // zero means time.Now
}

// ExecDecision is the outcome of execution classification.
type ExecDecision struct {
	Status  model.Status      `json:"status"`
	Impact  model.ImpactLevel `json:"impact"`
	Scope   model.Scope       `json:"scope"`
	Gate    model.ReleaseGate `json:"gate"`
	Reasons []string          `json:"reasons,omitempty"`
}

// EvaluateExecution classifies the action and, for irreversible impact,
// checks every precondition. Each failing condition contributes a named
// reason; the action is allowed only if the reasons list is empty.
func EvaluateExecution(req ExecRequest, table Table, th Thresholds) ExecDecision {
	c := table.Classify(req.ActionKey)
	d := ExecDecision{
		Impact: c.Impact,
		Scope:  c.Scope,
		Gate:   ReleaseGateFor(c.Impact, c.Scope),
	}

	if c.Impact != model.ImpactIrreversible {
		d.Status = model.StatusAllow
		return d
	}

	now := req.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	if req.MockMode {
		d.Reasons = append(d.Reasons, model.ReasonMockMode)
	}
	if req.AutoExecute {
		d.Reasons = append(d.Reasons, model.ReasonAutoExecute)
	}
	if !req.Approval.Granted {
		d.Reasons = append(d.Reasons, model.ReasonApprovalMissing)
	}
	if req.Rationale == "" {
		d.Reasons = append(d.Reasons, model.ReasonRationaleMissing)
	}
	if req.CoolingOff <= 0 {
		d.Reasons = append(d.Reasons, model.ReasonCoolingOffMissing)
	}
	if c.Scope != model.ScopeLocal {
		if req.NotBefore.IsZero() || now.Before(req.NotBefore) {
			d.Reasons = append(d.Reasons, model.ReasonTimeDelayPending)
		}
	}
	if req.DriftScore < th.DriftExecuteMin {
		d.Reasons = append(d.Reasons, model.ReasonDriftBelowThreshold)
	}

	if len(d.Reasons) == 0 {
		d.Status = model.StatusAllow
	} else {
		d.Status = model.StatusSafeHold
	}
	return d
}

// DescribeReasons renders the reason list for log lines.
func DescribeReasons(reasons []string) string {
	if len(reasons) == 0 {
		return "all preconditions met"
	}
	out := reasons[0]
	for _, r := range reasons[1:] {
		out += ", " + r
	}
	return fmt.Sprintf("held: %s", out)
}
