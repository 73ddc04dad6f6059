package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tillerhq/tiller/internal/config"
	"github.com/tillerhq/tiller/internal/store"
)

var (
	dbPath     string
	ledgerJSON bool
)

func init() {
	rootCmd.AddCommand(ledgerCmd, budgetCmd)
	ledgerCmd.Flags().StringVar(&dbPath, "db", "", "Database path (default ~/.tiller/tiller.db)")
	ledgerCmd.Flags().BoolVar(&ledgerJSON, "json", false, "JSON output")
	budgetCmd.Flags().StringVar(&dbPath, "db", "", "Database path (default ~/.tiller/tiller.db)")
}

func openStore() (*store.Store, error) {
	path := dbPath
	if path == "" {
		path = store.DefaultPath()
	}
	return store.Open(path)
}

var ledgerCmd = &cobra.Command{
	Use:   "ledger <identity>",
	Short: "Read an identity's execution ledger in logical clock order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		records, err := s.LoadLedger(args[0])
		if err != nil {
			return err
		}

		if ledgerJSON {
			out, err := json.MarshalIndent(records, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		}

		if len(records) == 0 {
			fmt.Println("no ledger records")
			return nil
		}
		for _, r := range records {
			approvalMark := " "
			if r.HumanApproval {
				approvalMark = "A"
			}
			fmt.Printf("%s  %s  %-8s %-30s %s\n", r.Timestamp, approvalMark, r.ActorRole, r.ActionClass, r.Rationale)
		}
		return nil
	},
}

var budgetCmd = &cobra.Command{
	Use:   "budget <identity>",
	Short: "Report an identity's budget usage against configured limits",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		usage, _, err := s.LoadUsage(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("cost:         %d / %d cents\n", usage.CostCents, cfg.Limits.MaxCostCents)
		fmt.Printf("tokens:       %d / %d\n", usage.Tokens, cfg.Limits.MaxTokens)
		fmt.Printf("side effects: %d / %d\n", usage.SideEffects, cfg.Limits.MaxSideEffects)
		return nil
	},
}
