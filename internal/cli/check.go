package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tillerhq/tiller/internal/approval"
	"github.com/tillerhq/tiller/internal/config"
	"github.com/tillerhq/tiller/internal/gateway"
	"github.com/tillerhq/tiller/internal/model"
)

var (
	checkIdentity   string
	checkAgent      string
	checkDomain     string
	checkAction     string
	checkTier       string
	checkImpact     string
	checkCostCents  int64
	checkTokens     int64
	checkEffects    int64
	checkUnits      int64
	checkCategory   string
	checkChargeID   string
	checkTaskID     string
	checkRationale  string
	checkDrift      float64
	checkInitiator  string
	checkJSON       bool
	checkApprovals  string
)

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringVar(&checkIdentity, "identity", "", "Tenant identity (required)")
	checkCmd.Flags().StringVar(&checkAgent, "agent", "", "Registered agent id (required)")
	checkCmd.Flags().StringVar(&checkDomain, "domain", "", "Business domain (required)")
	checkCmd.Flags().StringVar(&checkAction, "action", "", "Action key, e.g. campaign.send (required)")
	checkCmd.Flags().StringVar(&checkTier, "tier", "execute", "Permission tier (observe|suggest|execute)")
	checkCmd.Flags().StringVar(&checkImpact, "impact", "reversible", "Declared impact")
	checkCmd.Flags().Int64Var(&checkCostCents, "cost-cents", 0, "Estimated cost in cents")
	checkCmd.Flags().Int64Var(&checkTokens, "tokens", 0, "Estimated token usage")
	checkCmd.Flags().Int64Var(&checkEffects, "side-effects", 0, "Estimated side-effect count")
	checkCmd.Flags().Int64Var(&checkUnits, "units", 0, "Billable units for the economic gate")
	checkCmd.Flags().StringVar(&checkCategory, "category", "compute", "Cost category")
	checkCmd.Flags().StringVar(&checkChargeID, "charge-id", "", "Idempotency key (default cli:<task-id>)")
	checkCmd.Flags().StringVar(&checkTaskID, "task-id", "", "Task id used to derive the charge id")
	checkCmd.Flags().StringVar(&checkRationale, "rationale", "", "Human-readable justification")
	checkCmd.Flags().Float64Var(&checkDrift, "drift", 0, "Alignment drift score in [0,1]")
	checkCmd.Flags().StringVar(&checkInitiator, "initiator", "agent", "Who asked (human|agent|system)")
	checkCmd.Flags().StringVar(&checkApprovals, "approvals", "", "Approval store dir (default ~/.tiller/pending)")
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "JSON output")
	checkCmd.MarkFlagRequired("identity")
	checkCmd.MarkFlagRequired("agent")
	checkCmd.MarkFlagRequired("domain")
	checkCmd.MarkFlagRequired("action")
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run the governance pipeline for a proposed action (dry-run)",
	Long: "Evaluates one proposed action through every gate without executing\n" +
		"anything. Exit code 0 when allowed, 1 when held or blocked.",
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, hash, err := config.LoadWithHash(configPath)
	if err != nil {
		return err
	}
	gw := gateway.New(cfg, hash, gateway.Options{})

	rctx := model.RuntimeContext{
		AgentID:      checkAgent,
		Domain:       checkDomain,
		DecisionType: checkAction,
		Source:       "cli",
		TaskID:       checkTaskID,

		PermissionTier: model.PermissionTier(checkTier),
		Impact:         model.ImpactLevel(checkImpact),

		EstimatedCostCents: checkCostCents,
		EstimatedTokens:    checkTokens,
		SideEffects:        checkEffects,

		Rationale:  checkRationale,
		DriftScore: checkDrift,

		Economics: model.EconomicAttribution{
			CostUnits: checkUnits,
			Category:  model.CostCategory(checkCategory),
			ChargeID:  checkChargeID,
		},
	}

	// A resolved approval for this charge id rides along.
	dir := checkApprovals
	if dir == "" {
		dir = approval.DefaultDir()
	}
	if approvals, err := approval.NewStore(dir); err == nil {
		if a, err := approvals.Grant(rctx.ChargeID()); err == nil && a.Granted {
			rctx = rctx.WithApproval(a)
		}
	}

	d := gw.EnforceRuntimeGovernance(checkIdentity, rctx, model.Initiator(checkInitiator))

	if checkJSON {
		out, err := json.MarshalIndent(d, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	} else {
		fmt.Printf("status: %s\n", d.Status)
		for _, r := range d.Reasons {
			fmt.Printf("reason: %s\n", r)
		}
		if d.RequiresHumanReview {
			fmt.Println("requires human review")
		}
		fmt.Printf("charge id: %s\n", rctx.ChargeID())
		fmt.Printf("policy: %s\n", d.PolicyHash)
	}

	if !d.Allowed {
		os.Exit(1)
	}
	return nil
}
