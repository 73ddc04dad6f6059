package certify

// CaseContext is the YAML shape of a governance decision context.
type CaseContext struct {
	Agent         string  `yaml:"agent"`
	Domain        string  `yaml:"domain"`
	DecisionType  string  `yaml:"decision_type"`
	Tier          string  `yaml:"tier"`
	Impact        string  `yaml:"impact"`
	CostCents     int64   `yaml:"cost_cents"`
	Tokens        int64   `yaml:"tokens"`
	SideEffects   int64   `yaml:"side_effects"`
	CostUnits     int64   `yaml:"cost_units"`
	Category      string  `yaml:"category"`
	ChargeID      string  `yaml:"charge_id"`
	Approved      bool    `yaml:"approved"`
	ApprovalRole  string  `yaml:"approval_role"`
	Rationale     string  `yaml:"rationale"`
	CoolingOffSec int64   `yaml:"cooling_off_seconds"`
	DriftScore    float64 `yaml:"drift_score"`
	AutoExecute   bool    `yaml:"auto_execute"`
	DelayElapsed  bool    `yaml:"delay_elapsed"`
}

// HandoffCase describes a stewardship handoff attempt.
type HandoffCase struct {
	Approved          bool    `yaml:"approved"`
	ApprovalRole      string  `yaml:"approval_role"`
	PolicyImmutable   bool    `yaml:"policy_immutable"`
	Invariants        bool    `yaml:"invariants_verified"`
	FailureSimsPassed bool    `yaml:"failure_sims_passed"`
	DriftScore        float64 `yaml:"drift_score"`
	MockMode          bool    `yaml:"mock_mode"`
}

// Case is one synthetic governance scenario. Repeat > 1 replays the same
// case (same charge id) to exercise idempotent charging.
type Case struct {
	Desc      string       `yaml:"desc"`
	Identity  string       `yaml:"identity,omitempty"`
	Initiator string       `yaml:"initiator,omitempty"`
	Context   *CaseContext `yaml:"context,omitempty"`
	Handoff   *HandoffCase `yaml:"handoff,omitempty"`
	Repeat    int          `yaml:"repeat,omitempty"`
	Expect    string       `yaml:"expect"`
}

// Category groups related cases under a named heading.
type Category struct {
	Name  string `yaml:"name"`
	Cases []Case `yaml:"cases"`
}

// Suite is a versioned battery of governance scenarios.
type Suite struct {
	Name       string     `yaml:"name"`
	Version    string     `yaml:"version"`
	Categories []Category `yaml:"categories"`
}

// CaseResult is the outcome of evaluating one case.
type CaseResult struct {
	Index    int    `json:"index"`
	Desc     string `json:"desc"`
	Passed   bool   `json:"passed"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
	Reason   string `json:"reason,omitempty"`
}

// CategoryResult holds pass/fail results for one category.
type CategoryResult struct {
	Name   string       `json:"name"`
	Total  int          `json:"total"`
	Passed int          `json:"passed"`
	Failed int          `json:"failed"`
	Cases  []CaseResult `json:"cases"`
}

// CertResult holds the full certification outcome.
type CertResult struct {
	Suite      string           `json:"suite"`
	Version    string           `json:"version"`
	PolicyHash string           `json:"policy_hash"`
	Total      int              `json:"total"`
	Passed     int              `json:"passed"`
	Failed     int              `json:"failed"`
	Categories []CategoryResult `json:"categories"`
}

// PassRate returns the fraction of passing cases.
func (r *CertResult) PassRate() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Passed) / float64(r.Total)
}
