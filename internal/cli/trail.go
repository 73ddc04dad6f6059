package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tillerhq/tiller/internal/audit"
)

var (
	trailPath     string
	replayFrom    string
	replayTo      string
	replayJSON    bool
)

func init() {
	rootCmd.AddCommand(trailCmd)
	trailCmd.AddCommand(trailVerifyCmd, trailReplayCmd)

	trailCmd.PersistentFlags().StringVar(&trailPath, "trail", "", "Decision trail JSONL path (required)")
	trailCmd.MarkPersistentFlagRequired("trail")
	trailReplayCmd.Flags().StringVar(&replayFrom, "from", "", "Lower bound (RFC3339)")
	trailReplayCmd.Flags().StringVar(&replayTo, "to", "", "Upper bound (RFC3339)")
	trailReplayCmd.Flags().BoolVar(&replayJSON, "json", false, "JSON output")
}

var trailCmd = &cobra.Command{
	Use:   "trail",
	Short: "Inspect the hash-chained decision trail",
}

var trailVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Validate the trail's hash chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		res := audit.Verify(trailPath)
		if !res.Valid {
			fmt.Fprintf(os.Stderr, "trail invalid at line %d: %s\n", res.ErrorLine, res.Error)
			os.Exit(1)
		}
		fmt.Printf("trail valid: %d entries\n", res.Lines)
		return nil
	},
}

var trailReplayCmd = &cobra.Command{
	Use:   "replay <identity>",
	Short: "Replay an identity's decisions from the trail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := audit.ReplayFilter{Identity: args[0]}
		if replayFrom != "" {
			t, err := time.Parse(time.RFC3339, replayFrom)
			if err != nil {
				return fmt.Errorf("invalid --from: %w", err)
			}
			filter.From = t
		}
		if replayTo != "" {
			t, err := time.Parse(time.RFC3339, replayTo)
			if err != nil {
				return fmt.Errorf("invalid --to: %w", err)
			}
			filter.To = t
		}

		res, err := audit.Replay(trailPath, filter)
		if err != nil {
			return err
		}

		if replayJSON {
			out, err := json.MarshalIndent(res, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		}

		for _, e := range res.Entries {
			fmt.Printf("%s  %-16s %-30s %v\n", e.Timestamp, e.Status, e.ActionType, e.Reasons)
		}
		s := res.Summary
		fmt.Printf("\n%d decisions: %d allow, %d block, %d hold, %d approval, %d defer (%d flagged for review)\n",
			s.Total, s.AllowCount, s.BlockCount, s.HoldCount, s.ApprovalCount, s.DeferCount, s.ReviewCount)
		return nil
	},
}
