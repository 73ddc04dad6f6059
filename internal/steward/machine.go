package steward

import (
	"fmt"
	"time"

	"github.com/tillerhq/tiller/internal/ledger"
	"github.com/tillerhq/tiller/internal/model"
)

// State is the stewardship activation state. Two states only: inactive and
// active. Transitions return a new State; the caller persists it.
type State struct {
	Active      bool      `json:"stewardship_active"`
	ActivatedAt time.Time `json:"activated_at,omitzero"`
	ActivatedBy string    `json:"activated_by,omitempty"`
}

// ReadinessInput is the evidence checked before a handoff may activate
// stewardship.
type ReadinessInput struct {
	PolicyImmutable    bool
	InvariantsVerified bool
	FailureSimsPassed  bool
	Approval           model.Approval
	DriftScore         float64
	MockMode           bool
}

// CheckLaunchReadiness returns the reasons the handoff is not ready.
// An empty slice means ready.
func CheckLaunchReadiness(in ReadinessInput, th Thresholds) []string {
	var reasons []string
	if !in.PolicyImmutable {
		reasons = append(reasons, "policy_not_immutable")
	}
	if !in.InvariantsVerified {
		reasons = append(reasons, "invariants_unverified")
	}
	if !in.FailureSimsPassed {
		reasons = append(reasons, "failure_simulations_incomplete")
	}
	if !in.Approval.FromRole(model.RoleSteward) {
		reasons = append(reasons, model.ReasonStewardApproval)
	}
	if in.DriftScore < th.DriftLaunchMin {
		reasons = append(reasons, model.ReasonDriftBelowThreshold)
	}
	if in.MockMode {
		reasons = append(reasons, model.ReasonMockMode)
	}
	return reasons
}

// HandoffResult is the outcome of a handoff or reset attempt.
type HandoffResult struct {
	Status  model.Status `json:"status"`
	Reasons []string     `json:"reasons,omitempty"`
}

// ApplyHandoff attempts the inactive → active transition. The attempt and
// its outcome are both written to the ledger (double-logging), whether or
// not the transition happens. A handoff on an already-active state holds.
func ApplyHandoff(s State, identity string, in ReadinessInput, th Thresholds, book *ledger.Book) (State, HandoffResult) {
	book.Append(identity, ledger.Input{
		ActorRole:     model.RoleSteward,
		ActionClass:   "stewardship.handoff.attempt",
		HumanApproval: in.Approval.Granted,
		Rationale:     "handoff requested",
	})

	if s.Active {
		return s, HandoffResult{Status: model.StatusSafeHold, Reasons: []string{"already_active"}}
	}

	reasons := CheckLaunchReadiness(in, th)
	if len(reasons) > 0 {
		book.Append(identity, ledger.Input{
			ActorRole:     model.RoleSteward,
			ActionClass:   "stewardship.handoff.held",
			HumanApproval: in.Approval.Granted,
			Rationale:     DescribeReasons(reasons),
		})
		return s, HandoffResult{Status: model.StatusSafeHold, Reasons: reasons}
	}

	s.Active = true
	s.ActivatedAt = time.Now().UTC()
	s.ActivatedBy = in.Approval.By

	book.Append(identity, ledger.Input{
		ActorRole:     model.RoleSteward,
		ActionClass:   "stewardship.activate",
		HumanApproval: true,
		Rationale:     fmt.Sprintf("activated by %s", in.Approval.By),
	})
	return s, HandoffResult{Status: model.StatusAllow}
}

// Reset attempts the active → inactive transition. Requires a steward-role
// human approval and is double-logged like the handoff.
func Reset(s State, identity string, approval model.Approval, book *ledger.Book) (State, HandoffResult) {
	book.Append(identity, ledger.Input{
		ActorRole:     model.RoleSteward,
		ActionClass:   "stewardship.reset.attempt",
		HumanApproval: approval.Granted,
		Rationale:     "reset requested",
	})

	if !s.Active {
		return s, HandoffResult{Status: model.StatusSafeHold, Reasons: []string{"not_active"}}
	}
	if !approval.FromRole(model.RoleSteward) {
		book.Append(identity, ledger.Input{
			ActorRole:     model.RoleSteward,
			ActionClass:   "stewardship.reset.held",
			HumanApproval: approval.Granted,
			Rationale:     DescribeReasons([]string{model.ReasonStewardApproval}),
		})
		return s, HandoffResult{Status: model.StatusSafeHold, Reasons: []string{model.ReasonStewardApproval}}
	}

	s = State{}

	book.Append(identity, ledger.Input{
		ActorRole:     model.RoleSteward,
		ActionClass:   "stewardship.reset",
		HumanApproval: true,
		Rationale:     fmt.Sprintf("reset by %s", approval.By),
	})
	return s, HandoffResult{Status: model.StatusAllow}
}

// EvaluateGuard re-validates the stewardship constraint for one action.
// While stewardship is active, builder privileges are revoked and any
// irreversible action additionally requires a steward-role approval. The
// check runs every time; approvals are never remembered between actions.
func EvaluateGuard(s State, impact model.ImpactLevel, approval model.Approval) (model.Status, []string) {
	if !s.Active {
		return model.StatusAllow, nil
	}
	if impact == model.ImpactIrreversible && !approval.FromRole(model.RoleSteward) {
		return model.StatusSafeHold, []string{model.ReasonStewardApproval}
	}
	return model.StatusAllow, nil
}

// EmergencyAction is a steward-declared override recorded independent of
// the activation state.
type EmergencyAction string

const (
	EmergencySafeHold EmergencyAction = "SAFE_HOLD"
	EmergencyReadOnly EmergencyAction = "READ_ONLY"
	EmergencyFullStop EmergencyAction = "FULL_STOP"
)

// Valid reports whether the emergency action is one of the closed set.
func (e EmergencyAction) Valid() bool {
	switch e {
	case EmergencySafeHold, EmergencyReadOnly, EmergencyFullStop:
		return true
	}
	return false
}

// RecordEmergency writes an emergency action to the ledger. It may be
// recorded at any time by a human steward and always requires a non-empty
// explanation.
func RecordEmergency(identity string, action EmergencyAction, approval model.Approval, explanation string, book *ledger.Book) (ledger.Record, error) {
	if !action.Valid() {
		return ledger.Record{}, fmt.Errorf("steward: unknown emergency action %q", action)
	}
	if !approval.FromRole(model.RoleSteward) {
		return ledger.Record{}, fmt.Errorf("steward: emergency action requires a human steward")
	}
	if explanation == "" {
		return ledger.Record{}, fmt.Errorf("steward: emergency action requires an explanation")
	}

	rec := book.Append(identity, ledger.Input{
		ActorRole:     model.RoleSteward,
		ActionClass:   "emergency." + string(action),
		HumanApproval: true,
		Rationale:     explanation,
	})
	return rec, nil
}
