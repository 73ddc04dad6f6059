// Package certify runs synthetic governance scenarios against a candidate
// policy and reports pass/fail per case. The reload path uses it as a
// regression guard: a candidate config that held fewer lines than the
// active one never goes live.
package certify

import (
	"time"

	"github.com/tillerhq/tiller/internal/config"
	"github.com/tillerhq/tiller/internal/econ"
	"github.com/tillerhq/tiller/internal/gateway"
	"github.com/tillerhq/tiller/internal/model"
	"github.com/tillerhq/tiller/internal/steward"
)

// Fixture identities injected into every certification run. Cases exercise
// the pipeline through these regardless of the candidate's own agent
// directory; limits, thresholds, and action tables still come from the
// candidate.
const (
	fixtureAgent   = "certify-agent"
	fixtureRole    = "certify"
	fixtureTenancy = "certify"
)

// Run evaluates every case in the suite against the candidate config.
// Each case runs on a fresh gateway so one scenario's budget or ledger
// state cannot leak into the next; Repeat replays the same case on the
// same gateway to exercise charge-id idempotency.
func Run(cfg *config.Config, policyHash string, suite *Suite) *CertResult {
	fx := fixtureConfig(cfg)
	res := &CertResult{
		Suite:      suite.Name,
		Version:    suite.Version,
		PolicyHash: policyHash,
	}

	for _, cat := range suite.Categories {
		cr := CategoryResult{Name: cat.Name}
		for i, tc := range cat.Cases {
			out := runCase(fx, policyHash, tc)
			out.Index = i
			out.Desc = tc.Desc
			out.Expected = tc.Expect
			out.Passed = out.Actual == tc.Expect
			cr.Total++
			if out.Passed {
				cr.Passed++
			} else {
				cr.Failed++
			}
			cr.Cases = append(cr.Cases, out)
		}
		res.Categories = append(res.Categories, cr)
		res.Total += cr.Total
		res.Passed += cr.Passed
		res.Failed += cr.Failed
	}
	return res
}

// fixtureConfig clones the candidate and registers the certification
// fixtures. The clone is shallow except for the maps the fixtures touch;
// the caller's config is never modified.
func fixtureConfig(cfg *config.Config) *config.Config {
	fx := *cfg

	fx.Agents = make(map[string]*config.AgentProfile, len(cfg.Agents)+1)
	for id, p := range cfg.Agents {
		fx.Agents[id] = p
	}
	fx.Agents[fixtureAgent] = &config.AgentProfile{
		Role:    fixtureRole,
		Domains: []string{fixtureTenancy},
		MaxTier: model.TierExecute,
	}

	fx.Roles = make(map[string]econ.RolePolicy, len(cfg.Roles)+1)
	for name, p := range cfg.Roles {
		fx.Roles[name] = p
	}
	fx.Roles[fixtureRole] = econ.RolePolicy{
		Role:              fixtureRole,
		AllowedCategories: []model.CostCategory{"io", "compute", "external"},
	}
	return &fx
}

func runCase(cfg *config.Config, policyHash string, tc Case) CaseResult {
	gw := gateway.New(cfg, policyHash, gateway.Options{})

	identity := tc.Identity
	if identity == "" {
		identity = fixtureTenancy
	}

	if tc.Handoff != nil {
		r := gw.ApplyStewardshipHandoff(identity, readinessInput(tc.Handoff))
		return CaseResult{Actual: string(r.Status), Reason: firstReason(r.Reasons)}
	}

	if tc.Context == nil {
		return CaseResult{Actual: "invalid_case", Reason: "case has neither context nor handoff"}
	}

	rctx := runtimeContext(tc.Context)
	initiator := model.InitiatorAgent
	if tc.Initiator != "" {
		initiator = model.Initiator(tc.Initiator)
	}

	repeat := tc.Repeat
	if repeat < 1 {
		repeat = 1
	}
	var d gateway.Decision
	for n := 0; n < repeat; n++ {
		d = gw.EnforceRuntimeGovernance(identity, rctx, initiator)
	}
	return CaseResult{Actual: string(d.Status), Reason: firstReason(d.Reasons)}
}

func runtimeContext(c *CaseContext) model.RuntimeContext {
	agent := c.Agent
	if agent == "" {
		agent = fixtureAgent
	}
	domain := c.Domain
	if domain == "" {
		domain = fixtureTenancy
	}

	rctx := model.RuntimeContext{
		AgentID:      agent,
		Domain:       domain,
		DecisionType: c.DecisionType,
		Source:       "certify",
		TaskID:       c.DecisionType,

		PermissionTier: model.PermissionTier(c.Tier),
		Impact:         model.ImpactLevel(c.Impact),

		EstimatedCostCents: c.CostCents,
		EstimatedTokens:    c.Tokens,
		SideEffects:        c.SideEffects,

		Rationale:   c.Rationale,
		AutoExecute: c.AutoExecute,
		CoolingOff:  time.Duration(c.CoolingOffSec) * time.Second,
		DriftScore:  c.DriftScore,

		Economics: model.EconomicAttribution{
			CostUnits: c.CostUnits,
			Category:  model.CostCategory(c.Category),
			ChargeID:  c.ChargeID,
		},
	}

	if c.Approved {
		role := model.ApproverRole(c.ApprovalRole)
		if role == "" {
			role = model.RoleHuman
		}
		rctx.Approval = model.Approval{Granted: true, Role: role, By: fixtureAgent}
	}
	if c.DelayElapsed {
		rctx.NotBefore = time.Now().UTC().Add(-time.Minute)
	}
	return rctx
}

func readinessInput(h *HandoffCase) steward.ReadinessInput {
	in := steward.ReadinessInput{
		PolicyImmutable:    h.PolicyImmutable,
		InvariantsVerified: h.Invariants,
		FailureSimsPassed:  h.FailureSimsPassed,
		DriftScore:         h.DriftScore,
		MockMode:           h.MockMode,
	}
	if h.Approved {
		role := model.ApproverRole(h.ApprovalRole)
		if role == "" {
			role = model.RoleSteward
		}
		in.Approval = model.Approval{Granted: true, Role: role, By: fixtureAgent}
	}
	return in
}

func firstReason(reasons []string) string {
	if len(reasons) == 0 {
		return ""
	}
	return reasons[0]
}
